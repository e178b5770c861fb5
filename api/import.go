package api

import (
	"net/http"
	"time"

	"github.com/consumedhq/consumed/core/access"
	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/schema"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/model"
)

// consumptionImportSchema validates batch import payloads before any row
// touches the database.
const consumptionImportSchema = `{
	"$id": "consumption-import",
	"type": "array",
	"minItems": 1,
	"maxItems": 500,
	"items": {
		"type": "object",
		"required": ["item_id", "volume"],
		"additionalProperties": false,
		"properties": {
			"item_id": {"type": "integer", "minimum": 1},
			"volume": {"type": "number", "minimum": 0},
			"consumed_at": {"type": "string"}
		}
	}
}`

func importSchemas() *schema.Validator {
	v, err := schema.NewValidator([]string{consumptionImportSchema}, nil)
	if err != nil {
		panic(err)
	}
	return v
}

// consumptionImport inserts a batch of consumption rows in one request. The
// payload is schema-validated up front and every referenced item must
// exist; a bad row rejects the whole batch before anything is written.
func (b *Backend) consumptionImport(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "rows", Source: validate.Body, Type: validate.JSON, Required: true,
			SchemaID: "consumption-import"},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()
	identity, ok := access.IdentityFromContext(ctx)
	if !ok {
		output.NotAuthorized(w)
		return
	}

	rows, _ := res.Value("rows").([]interface{})
	type stagedRow struct {
		itemID     int64
		volume     float64
		consumedAt time.Time
	}
	staged := make([]stagedRow, 0, len(rows))
	items := make(map[int64]*model.Item)
	for _, raw := range rows {
		row, _ := raw.(map[string]interface{})
		itemID, err := model.AsInt(row["item_id"])
		if err != nil {
			output.ValidationFailed(w, err.Error())
			return
		}
		if _, seen := items[itemID]; !seen {
			item, ok := b.loadItem(w, r, itemID)
			if !ok {
				return
			}
			items[itemID] = item
		}
		volume, err := model.AsFloat(row["volume"])
		if err != nil {
			output.ValidationFailed(w, err.Error())
			return
		}
		consumedAt := time.Now().UTC()
		if raw, present := row["consumed_at"]; present {
			if consumedAt, err = model.AsTime(raw); err != nil {
				output.ValidationFailed(w, err.Error())
				return
			}
		}
		staged = append(staged, stagedRow{itemID: itemID, volume: volume, consumedAt: consumedAt})
	}

	imported := 0
	for _, row := range staged {
		c := &model.UserConsumption{}
		err := model.Map(c, map[string]interface{}{
			"user_id":     identity.UserID,
			"item_id":     row.itemID,
			"volume":      row.volume,
			"consumed_at": row.consumedAt,
		}, []string{"user_id", "item_id", "volume", "consumed_at"})
		if err == nil {
			err = b.store.Insert(ctx, c)
		}
		if err != nil {
			logger.FromContext(ctx).Errorln("import row failed:", err)
			output.ServerError(w, err.Error())
			return
		}
		imported++
	}
	output.OK(w, map[string]interface{}{"imported": imported})
}
