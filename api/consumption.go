package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/consumedhq/consumed/core/access"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/model"
)

// ownerID resolves whose consumptions a request addresses. The /my routes
// address the caller; the nested /users/{userId} routes must address the
// caller too, there is no cross-account access.
func ownerID(w http.ResponseWriter, r *http.Request, res *validate.Result) (int64, bool) {
	identity, _ := access.IdentityFromContext(r.Context())
	if !res.Has("userId") {
		return identity.UserID, true
	}
	if res.Int("userId") != identity.UserID {
		output.NotAuthorized(w)
		return 0, false
	}
	return identity.UserID, true
}

func expandNames(res *validate.Result) []string {
	raw := res.String("expand")
	if raw == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// loadItem checks that a referenced item exists before any insert happens.
func (b *Backend) loadItem(w http.ResponseWriter, r *http.Request, itemID int64) (*model.Item, bool) {
	e, err := b.store.GetByID(r.Context(), model.ItemMeta, itemID)
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "item", itemID)
		return nil, false
	}
	if err != nil {
		b.serverError(w, r, err)
		return nil, false
	}
	return e.(*model.Item), true
}

func (b *Backend) consumptionList(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "userId", Source: validate.Path, Type: validate.Integer},
		validate.Field{Name: "take", Source: validate.Query, Type: validate.Integer},
		validate.Field{Name: "skip", Source: validate.Query, Type: validate.Integer},
		validate.Field{Name: "orderBy", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "query", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "item_id", Source: validate.Query, Type: validate.Integer},
		validate.Field{Name: "expand", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "display", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "group", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "period", Source: validate.Query, Type: validate.String},
		validate.Field{Name: "from", Source: validate.Query, Type: validate.Timestamp},
		validate.Field{Name: "until", Source: validate.Query, Type: validate.Timestamp},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	userID, ok := ownerID(w, r, res)
	if !ok {
		return
	}

	switch res.String("display") {
	case "chart":
		b.consumptionChart(w, r, userID, res)
		return
	case "summary":
		b.consumptionSummary(w, r, userID)
		return
	case "", "default":
	default:
		output.InvalidParameter(w, "display")
		return
	}

	filter := map[string]interface{}{"user_id": userID}
	if res.Has("item_id") {
		filter["item_id"] = res.Int("item_id")
	}
	if res.Has("query") {
		filter["query"] = res.String("query")
	}
	entities, err := b.store.FindBy(r.Context(), model.UserConsumptionMeta, filter, listOptions(res))
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

func (b *Backend) userLocation(r *http.Request, userID int64) *time.Location {
	e, err := b.store.GetByID(r.Context(), model.UserMeta, userID)
	if err != nil {
		return time.UTC
	}
	return e.(*model.User).Location()
}

func (b *Backend) consumptionChart(w http.ResponseWriter, r *http.Request, userID int64, res *validate.Result) {
	group := model.GroupDay
	if res.Has("group") {
		var err error
		if group, err = model.ParseGrouping(res.String("group")); err != nil {
			output.InvalidParameter(w, "group")
			return
		}
	}
	period := model.PeriodLast7Days
	if res.Has("period") {
		var err error
		if period, err = model.ParsePeriod(res.String("period")); err != nil {
			output.InvalidParameter(w, "period")
			return
		}
	}
	loc := b.userLocation(r, userID)
	chart, err := b.store.Chart(r.Context(), userID, group, period, loc, res.Time("from"), res.Time("until"))
	if err != nil {
		if errors.Is(err, model.ErrInvalidRange) {
			output.ValidationFailed(w, err.Error())
			return
		}
		b.serverError(w, r, err)
		return
	}
	output.OK(w, chart)
}

func (b *Backend) consumptionSummary(w http.ResponseWriter, r *http.Request, userID int64) {
	summary, err := b.store.Summary(r.Context(), userID, time.Time{})
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	output.OK(w, summary)
}

func (b *Backend) consumptionCreate(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "userId", Source: validate.Path, Type: validate.Integer},
		validate.Field{Name: "item_id", Source: validate.Body, Type: validate.Integer, Required: true},
		validate.Field{Name: "volume", Source: validate.Body, Type: validate.Float},
		validate.Field{Name: "notes", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "consumed_at", Source: validate.Body, Type: validate.Timestamp},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	userID, ok := ownerID(w, r, res)
	if !ok {
		return
	}
	item, ok := b.loadItem(w, r, res.Int("item_id"))
	if !ok {
		return
	}

	c := &model.UserConsumption{}
	properties := map[string]interface{}{
		"item_id": res.Int("item_id"),
	}
	if res.Has("notes") {
		properties["notes"] = res.String("notes")
	}
	if res.Has("volume") {
		properties["volume"] = res.Float("volume")
	} else {
		properties["volume"] = item.DefaultVolume
	}
	if res.Has("consumed_at") {
		properties["consumed_at"] = res.Time("consumed_at")
	} else {
		properties["consumed_at"] = time.Now().UTC()
	}
	if err := model.Map(c, properties, model.UserConsumptionMeta.Creatable); err != nil {
		output.ValidationFailed(w, err.Error())
		return
	}
	if err := model.Map(c, map[string]interface{}{"user_id": userID}, []string{"user_id"}); err != nil {
		b.serverError(w, r, err)
		return
	}
	if err := b.store.Insert(r.Context(), c); err != nil {
		b.serverError(w, r, err)
		return
	}
	if err := b.store.Expand(r.Context(), c, "item"); err != nil {
		b.serverError(w, r, err)
		return
	}
	model.Decorate(c, b.baseURL)
	output.OK(w, model.Present(c))
}

// loadOwnConsumption loads the addressed consumption and checks ownership.
// Rows of other users read as not found, they are not leaked.
func (b *Backend) loadOwnConsumption(w http.ResponseWriter, r *http.Request, userID, id int64) (*model.UserConsumption, bool) {
	e, err := b.store.GetByID(r.Context(), model.UserConsumptionMeta, id)
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "consumption", id)
		return nil, false
	}
	if err != nil {
		b.serverError(w, r, err)
		return nil, false
	}
	c := e.(*model.UserConsumption)
	if c.UserID != userID {
		output.ModelNotFound(w, "consumption", id)
		return nil, false
	}
	return c, true
}

func (b *Backend) consumptionGet(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "userId", Source: validate.Path, Type: validate.Integer},
		validate.Field{Name: "id", Source: validate.Path, Type: validate.Integer, Required: true},
		validate.Field{Name: "expand", Source: validate.Query, Type: validate.String},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	userID, ok := ownerID(w, r, res)
	if !ok {
		return
	}
	c, ok := b.loadOwnConsumption(w, r, userID, res.Int("id"))
	if !ok {
		return
	}
	if expand := expandNames(res); len(expand) > 0 {
		if err := b.store.Expand(r.Context(), c, expand...); err != nil {
			b.serverError(w, r, err)
			return
		}
	}
	model.Decorate(c, b.baseURL)
	output.OK(w, model.Present(c))
}

func (b *Backend) consumptionUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "userId", Source: validate.Path, Type: validate.Integer},
		validate.Field{Name: "id", Source: validate.Path, Type: validate.Integer, Required: true},
		validate.Field{Name: "item_id", Source: validate.Body, Type: validate.Integer},
		validate.Field{Name: "volume", Source: validate.Body, Type: validate.Float},
		validate.Field{Name: "notes", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "consumed_at", Source: validate.Body, Type: validate.Timestamp},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	userID, ok := ownerID(w, r, res)
	if !ok {
		return
	}
	c, ok := b.loadOwnConsumption(w, r, userID, res.Int("id"))
	if !ok {
		return
	}
	if res.Has("item_id") {
		if _, ok := b.loadItem(w, r, res.Int("item_id")); !ok {
			return
		}
	}
	values := res.Values()
	delete(values, "id")
	delete(values, "userId")
	if err := model.Map(c, values, model.UserConsumptionMeta.Updatable); err != nil {
		output.ValidationFailed(w, err.Error())
		return
	}
	if err := b.store.Update(r.Context(), c); err != nil {
		b.serverError(w, r, err)
		return
	}
	model.Decorate(c, b.baseURL)
	output.OK(w, model.Present(c))
}

func (b *Backend) consumptionDelete(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "userId", Source: validate.Path, Type: validate.Integer},
		validate.Field{Name: "id", Source: validate.Path, Type: validate.Integer, Required: true},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	userID, ok := ownerID(w, r, res)
	if !ok {
		return
	}
	c, ok := b.loadOwnConsumption(w, r, userID, res.Int("id"))
	if !ok {
		return
	}
	if err := b.store.Delete(r.Context(), c, false); err != nil {
		b.serverError(w, r, err)
		return
	}
	output.NoContent(w)
}
