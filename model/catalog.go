package model

// The remaining catalog entities: categories, types, volume definitions,
// countries and timezones. All of them are small read-mostly lookup tables.

// ItemCategory groups items, like "beer" or "coffee".
type ItemCategory struct {
	Base
	Title string
	Slug  string
}

// ItemCategoryMeta describes the item category entity.
var ItemCategoryMeta = Register(&Metadata{
	Name:       "item_category",
	Table:      "item_categories",
	Timestamps: true,
	SoftDelete: true,
	Fields: []Field{
		StringField("title", func(e Entity) *string { return &e.(*ItemCategory).Title }),
		StringField("slug", func(e Entity) *string { return &e.(*ItemCategory).Slug }),
	},
	Creatable:  []string{"title", "slug"},
	Updatable:  []string{"title"},
	Searchable: []string{"title", "slug"},
	Filterable: []string{"slug"},
	Orderable:  []string{"id", "title", "created_at"},
	URIs: URIs{
		Self: []Segment{Lit("item-categories"), Ref("id")},
	},
	New: func() Entity { return &ItemCategory{} },
})

// Meta implements Entity.
func (c *ItemCategory) Meta() *Metadata { return ItemCategoryMeta }

// ItemType classifies items within a category, like "lager" or "espresso".
type ItemType struct {
	Base
	Title string
	Slug  string
}

// ItemTypeMeta describes the item type entity.
var ItemTypeMeta = Register(&Metadata{
	Name:       "item_type",
	Table:      "item_types",
	Timestamps: true,
	SoftDelete: true,
	Fields: []Field{
		StringField("title", func(e Entity) *string { return &e.(*ItemType).Title }),
		StringField("slug", func(e Entity) *string { return &e.(*ItemType).Slug }),
	},
	Creatable:  []string{"title", "slug"},
	Updatable:  []string{"title"},
	Searchable: []string{"title", "slug"},
	Filterable: []string{"slug"},
	Orderable:  []string{"id", "title", "created_at"},
	URIs: URIs{
		Self: []Segment{Lit("item-types"), Ref("id")},
	},
	New: func() Entity { return &ItemType{} },
})

// Meta implements Entity.
func (t *ItemType) Meta() *Metadata { return ItemTypeMeta }

// VolumeDefinition is a named serving size, like "pint" with 0.568 liters.
type VolumeDefinition struct {
	Base
	Title  string
	Unit   string
	Amount float64
}

// VolumeDefinitionMeta describes the volume definition entity.
var VolumeDefinitionMeta = Register(&Metadata{
	Name:       "volume_definition",
	Table:      "volume_definitions",
	Timestamps: true,
	Fields: []Field{
		StringField("title", func(e Entity) *string { return &e.(*VolumeDefinition).Title }),
		StringField("unit", func(e Entity) *string { return &e.(*VolumeDefinition).Unit }),
		FloatField("amount", func(e Entity) *float64 { return &e.(*VolumeDefinition).Amount }),
	},
	Creatable:  []string{"title", "unit", "amount"},
	Updatable:  []string{"title", "unit", "amount"},
	Searchable: []string{"title"},
	Orderable:  []string{"id", "title", "amount"},
	URIs: URIs{
		Self: []Segment{Lit("volume-definitions"), Ref("id")},
	},
	New: func() Entity { return &VolumeDefinition{} },
})

// Meta implements Entity.
func (v *VolumeDefinition) Meta() *Metadata { return VolumeDefinitionMeta }

// Country is an ISO country, used to infer a timezone at registration.
type Country struct {
	Base
	Code string
	Name string
}

// CountryMeta describes the country entity.
var CountryMeta = Register(&Metadata{
	Name:       "country",
	Table:      "countries",
	Timestamps: true,
	Fields: []Field{
		StringField("code", func(e Entity) *string { return &e.(*Country).Code }),
		StringField("name", func(e Entity) *string { return &e.(*Country).Name }),
	},
	Creatable:  []string{"code", "name"},
	Updatable:  []string{"name"},
	Searchable: []string{"name"},
	Filterable: []string{"code"},
	Orderable:  []string{"id", "code", "name"},
	URIs: URIs{
		Self: []Segment{Lit("countries"), Ref("id")},
	},
	New: func() Entity { return &Country{} },
})

// Meta implements Entity.
func (c *Country) Meta() *Metadata { return CountryMeta }

// Timezone maps a country to an IANA timezone name.
type Timezone struct {
	Base
	CountryCode string
	Name        string
}

// TimezoneMeta describes the timezone entity.
var TimezoneMeta = Register(&Metadata{
	Name:       "timezone",
	Table:      "timezones",
	Timestamps: true,
	Fields: []Field{
		StringField("country_code", func(e Entity) *string { return &e.(*Timezone).CountryCode }),
		StringField("name", func(e Entity) *string { return &e.(*Timezone).Name }),
	},
	Creatable:  []string{"country_code", "name"},
	Updatable:  []string{"name"},
	Searchable: []string{"name"},
	Filterable: []string{"country_code"},
	Orderable:  []string{"id", "country_code", "name"},
	URIs: URIs{
		Self: []Segment{Lit("timezones"), Ref("id")},
	},
	New: func() Entity { return &Timezone{} },
})

// Meta implements Entity.
func (t *Timezone) Meta() *Metadata { return TimezoneMeta }
