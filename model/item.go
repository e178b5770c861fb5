package model

// Item is a consumable from the catalog.
type Item struct {
	Base
	Title              string
	Slug               string
	ItemCategoryID     int64
	ItemTypeID         int64
	VolumeDefinitionID int64
	DefaultVolume      float64
}

// ItemMeta describes the catalog item entity.
var ItemMeta = Register(&Metadata{
	Name:       "item",
	Table:      "items",
	Timestamps: true,
	SoftDelete: true,
	Fields: []Field{
		StringField("title", func(e Entity) *string { return &e.(*Item).Title }),
		StringField("slug", func(e Entity) *string { return &e.(*Item).Slug }),
		IntField("item_category_id", func(e Entity) *int64 { return &e.(*Item).ItemCategoryID }),
		IntField("item_type_id", func(e Entity) *int64 { return &e.(*Item).ItemTypeID }),
		IntField("volume_definition_id", func(e Entity) *int64 { return &e.(*Item).VolumeDefinitionID }),
		FloatField("default_volume", func(e Entity) *float64 { return &e.(*Item).DefaultVolume }),
	},
	Creatable:  []string{"title", "slug", "item_category_id", "item_type_id", "volume_definition_id", "default_volume"},
	Updatable:  []string{"title", "item_category_id", "item_type_id", "volume_definition_id", "default_volume"},
	Searchable: []string{"title", "slug"},
	Filterable: []string{"slug", "item_category_id", "item_type_id"},
	Orderable:  []string{"id", "title", "created_at", "updated_at"},
	Expandable: []Relation{
		{Name: "item_category", Field: "item_category_id", Target: "item_category"},
		{Name: "item_type", Field: "item_type_id", Target: "item_type"},
		{Name: "volume_definition", Field: "volume_definition_id", Target: "volume_definition"},
	},
	URIs: URIs{
		Self: []Segment{Lit("items"), Ref("id")},
		Reference: map[string][]Segment{
			"item_category": {Lit("item-categories"), Ref("item_category_id")},
			"item_type":     {Lit("item-types"), Ref("item_type_id")},
		},
	},
	New: func() Entity { return &Item{} },
})

// Meta implements Entity.
func (i *Item) Meta() *Metadata { return ItemMeta }
