package model

import "time"

// UserConsumption is one logged consumption event: a user consumed a volume
// of an item at a point in time, with an optional free-text note.
type UserConsumption struct {
	Base
	UserID     int64
	ItemID     int64
	Volume     float64
	Notes      string
	ConsumedAt time.Time
}

// UserConsumptionMeta describes the consumption event entity.
var UserConsumptionMeta = Register(&Metadata{
	Name:       "user_consumption",
	Table:      "user_consumptions",
	Timestamps: true,
	SoftDelete: true,
	Fields: []Field{
		IntField("user_id", func(e Entity) *int64 { return &e.(*UserConsumption).UserID }),
		IntField("item_id", func(e Entity) *int64 { return &e.(*UserConsumption).ItemID }),
		FloatField("volume", func(e Entity) *float64 { return &e.(*UserConsumption).Volume }),
		StringField("notes", func(e Entity) *string { return &e.(*UserConsumption).Notes }),
		TimeField("consumed_at", func(e Entity) *time.Time { return &e.(*UserConsumption).ConsumedAt }),
	},
	Creatable:  []string{"item_id", "volume", "notes", "consumed_at"},
	Updatable:  []string{"item_id", "volume", "notes", "consumed_at"},
	Searchable: []string{"notes"},
	Filterable: []string{"user_id", "item_id"},
	Orderable:  []string{"id", "item_id", "volume", "consumed_at", "created_at", "updated_at"},
	Expandable: []Relation{
		{Name: "item", Field: "item_id", Target: "item"},
		{Name: "user", Field: "user_id", Target: "user"},
	},
	URIs: URIs{
		Self:   []Segment{Lit("my"), Lit("consumptions"), Ref("id")},
		Parent: []Segment{Lit("users"), Ref("user_id")},
		Reference: map[string][]Segment{
			"item": {Lit("items"), Ref("item_id")},
		},
	},
	Parent:    "user",
	ParentKey: "user_id",
	New:       func() Entity { return &UserConsumption{} },
})

// Meta implements Entity.
func (c *UserConsumption) Meta() *Metadata { return UserConsumptionMeta }
