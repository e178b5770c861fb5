package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/model"
)

// catalogs maps the public read-only route prefixes onto registry names.
// The handlers are generic; the metadata drives filtering, search, ordering
// and expansion per catalog.
var catalogs = map[string]string{
	"items":              "item",
	"item-categories":    "item_category",
	"item-types":         "item_type",
	"volume-definitions": "volume_definition",
	"countries":          "country",
	"timezones":          "timezone",
}

func (b *Backend) catalogRoutes(router *mux.Router) {
	for path, name := range catalogs {
		meta, ok := model.Lookup(name)
		if !ok {
			panic("api: unregistered catalog " + name)
		}
		router.HandleFunc("/"+path, b.catalogList(meta)).Methods(http.MethodGet)
		router.HandleFunc("/"+path+"/{id:[0-9]+}", b.catalogGet(meta)).Methods(http.MethodGet)
	}
}

func (b *Backend) catalogList(meta *model.Metadata) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := []validate.Field{
			{Name: "take", Source: validate.Query, Type: validate.Integer},
			{Name: "skip", Source: validate.Query, Type: validate.Integer},
			{Name: "orderBy", Source: validate.Query, Type: validate.String},
			{Name: "query", Source: validate.Query, Type: validate.String},
			{Name: "expand", Source: validate.Query, Type: validate.String},
		}
		for _, name := range meta.Filterable {
			fields = append(fields, validate.Field{Name: name, Source: validate.Query, Type: validate.Mixed})
		}
		res, err := b.validator.Request(r, fields...)
		if err != nil {
			writeValidationError(w, err)
			return
		}

		filter := map[string]interface{}{}
		for _, name := range meta.Filterable {
			if res.Has(name) {
				filter[name] = res.Value(name)
			}
		}
		if res.Has("query") {
			filter["query"] = res.String("query")
		}
		entities, err := b.store.FindBy(r.Context(), meta, filter, listOptions(res))
		if err != nil {
			if errors.Is(err, model.ErrNotOrderable) || errors.Is(err, model.ErrUnknownField) {
				output.InvalidParameter(w, "orderBy")
				return
			}
			b.serverError(w, r, err)
			return
		}
		expand := expandNames(res)
		for _, e := range entities {
			if len(expand) > 0 {
				if err := b.store.Expand(r.Context(), e, expand...); err != nil {
					b.serverError(w, r, err)
					return
				}
			}
			model.Decorate(e, b.baseURL)
		}
		output.OK(w, model.PresentAll(entities))
	}
}

func (b *Backend) catalogGet(meta *model.Metadata) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := b.validator.Request(r,
			validate.Field{Name: "id", Source: validate.Path, Type: validate.Integer, Required: true},
			validate.Field{Name: "expand", Source: validate.Query, Type: validate.String},
		)
		if err != nil {
			writeValidationError(w, err)
			return
		}
		e, err := b.store.GetByID(r.Context(), meta, res.Int("id"))
		if err == model.ErrNotFound {
			output.ModelNotFound(w, meta.Name, res.Int("id"))
			return
		}
		if err != nil {
			b.serverError(w, r, err)
			return
		}
		if expand := expandNames(res); len(expand) > 0 {
			if err := b.store.Expand(r.Context(), e, expand...); err != nil {
				b.serverError(w, r, err)
				return
			}
		}
		model.Decorate(e, b.baseURL)
		output.OK(w, model.Present(e))
	}
}
