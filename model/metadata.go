package model

import (
	"fmt"
	"sort"
	"time"
)

// Kind is the storage type of a declared field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

// Field is one entry of an entity's dispatch table. Get reads the current
// value, Set coerces and assigns one. There is no reflection anywhere in
// the engine; every field access goes through these two closures.
type Field struct {
	Name string
	Kind Kind
	// Hidden fields are persisted but never serialized.
	Hidden bool
	Get    func(Entity) interface{}
	Set    func(Entity, interface{}) error
}

// Relation declares an expandable belongs-to relation: the local foreign
// key field and the registry name of the target entity.
type Relation struct {
	Name   string
	Field  string
	Target string
}

// Segment is one part of a resource URI template: either a literal path
// element or the name of a field whose value is interpolated.
type Segment struct {
	Literal string
	Field   string
}

// Lit returns a literal URI segment.
func Lit(s string) Segment { return Segment{Literal: s} }

// Ref returns a field reference URI segment.
func Ref(field string) Segment { return Segment{Field: field} }

// URIs declares the resource URI templates of an entity.
type URIs struct {
	Self      []Segment
	Parent    []Segment
	Reference map[string][]Segment
}

// Metadata describes one entity type. Instances are built at init time,
// registered once and never mutated afterwards.
type Metadata struct {
	// Name is the registry key, singular snake case.
	Name       string
	Table      string
	PrimaryKey string
	Timestamps bool
	SoftDelete bool
	Fields     []Field

	// Creatable and Updatable are the mapping whitelists for create and
	// update requests. They are distinct on purpose.
	Creatable []string
	Updatable []string
	// Searchable fields participate in the reserved `query` substring filter.
	Searchable []string
	// Filterable fields may appear as equality filters in list requests.
	Filterable []string
	// Orderable fields may appear in the orderBy parameter.
	Orderable []string
	// Linkable marks a link table: the source and target foreign key columns.
	Linkable [2]string
	// Expandable declares the relations Expand can load.
	Expandable []Relation

	URIs URIs
	// Parent is the registry name of the owning entity, if any.
	Parent string
	// ParentKey is the foreign key field pointing at the parent.
	ParentKey string

	// New creates an empty entity of this type.
	New func() Entity

	fieldIndex map[string]*Field
}

// FieldByName returns the declared field with the given name.
func (m *Metadata) FieldByName(name string) (*Field, bool) {
	f, ok := m.fieldIndex[name]
	return f, ok
}

// IsLinkTable reports whether this entity is a pure link table.
func (m *Metadata) IsLinkTable() bool {
	return m.Linkable[0] != "" && m.Linkable[1] != ""
}

var registry = map[string]*Metadata{}

// Register adds entity metadata to the process registry. It verifies that
// every whitelist entry names a declared field and panics otherwise, so a
// bad registration fails at startup rather than on first use.
func Register(meta *Metadata) *Metadata {
	if meta.Name == "" || meta.Table == "" || meta.New == nil {
		panic("model: metadata needs name, table and factory")
	}
	if meta.PrimaryKey == "" {
		meta.PrimaryKey = "id"
	}
	if _, exists := registry[meta.Name]; exists {
		panic(fmt.Sprintf("model: %s registered twice", meta.Name))
	}
	meta.fieldIndex = make(map[string]*Field, len(meta.Fields))
	for i := range meta.Fields {
		field := &meta.Fields[i]
		if _, dup := meta.fieldIndex[field.Name]; dup {
			panic(fmt.Sprintf("model: %s declares field %s twice", meta.Name, field.Name))
		}
		meta.fieldIndex[field.Name] = field
	}
	// the primary key and timestamp columns exist on every table even
	// though they are not declared fields
	implicit := func(name string) bool {
		if name == meta.PrimaryKey {
			return true
		}
		return meta.Timestamps && (name == "created_at" || name == "updated_at")
	}
	check := func(list []string, what string) {
		for _, name := range list {
			if _, ok := meta.fieldIndex[name]; !ok && !implicit(name) {
				panic(fmt.Sprintf("model: %s %s references undeclared field %s", meta.Name, what, name))
			}
		}
	}
	check(meta.Creatable, "creatable")
	check(meta.Updatable, "updatable")
	check(meta.Searchable, "searchable")
	check(meta.Filterable, "filterable")
	check(meta.Orderable, "orderable")
	if meta.IsLinkTable() {
		check(meta.Linkable[:], "linkable")
	}
	for _, rel := range meta.Expandable {
		if _, ok := meta.fieldIndex[rel.Field]; !ok {
			panic(fmt.Sprintf("model: %s expandable %s references undeclared field %s", meta.Name, rel.Name, rel.Field))
		}
	}
	if meta.ParentKey != "" {
		check([]string{meta.ParentKey}, "parent key")
	}
	registry[meta.Name] = meta
	return meta
}

// Lookup returns registered metadata by name.
func Lookup(name string) (*Metadata, bool) {
	meta, ok := registry[name]
	return meta, ok
}

// Names returns all registered entity names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustValidate cross-checks the registry after all entities have been
// registered: expandable targets and parents must exist. Called once at
// startup.
func MustValidate() {
	for name, meta := range registry {
		for _, rel := range meta.Expandable {
			if _, ok := registry[rel.Target]; !ok {
				panic(fmt.Sprintf("model: %s expandable %s targets unregistered %s", name, rel.Name, rel.Target))
			}
		}
		if meta.Parent != "" {
			if _, ok := registry[meta.Parent]; !ok {
				panic(fmt.Sprintf("model: %s names unregistered parent %s", name, meta.Parent))
			}
		}
	}
}

// Typed field constructors. Each one builds the Get/Set pair around a
// pointer accessor into the concrete entity struct.

// StringField declares a string field.
func StringField(name string, ptr func(Entity) *string) Field {
	return Field{
		Name: name,
		Kind: KindString,
		Get:  func(e Entity) interface{} { return *ptr(e) },
		Set: func(e Entity, v interface{}) error {
			s, err := AsString(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*ptr(e) = s
			e.base().markSet(name)
			return nil
		},
	}
}

// HiddenStringField declares a string field that is never serialized.
func HiddenStringField(name string, ptr func(Entity) *string) Field {
	f := StringField(name, ptr)
	f.Hidden = true
	return f
}

// IntField declares an integer field.
func IntField(name string, ptr func(Entity) *int64) Field {
	return Field{
		Name: name,
		Kind: KindInt,
		Get:  func(e Entity) interface{} { return *ptr(e) },
		Set: func(e Entity, v interface{}) error {
			n, err := AsInt(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*ptr(e) = n
			e.base().markSet(name)
			return nil
		},
	}
}

// FloatField declares a float field.
func FloatField(name string, ptr func(Entity) *float64) Field {
	return Field{
		Name: name,
		Kind: KindFloat,
		Get:  func(e Entity) interface{} { return *ptr(e) },
		Set: func(e Entity, v interface{}) error {
			f, err := AsFloat(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*ptr(e) = f
			e.base().markSet(name)
			return nil
		},
	}
}

// BoolField declares a boolean field.
func BoolField(name string, ptr func(Entity) *bool) Field {
	return Field{
		Name: name,
		Kind: KindBool,
		Get:  func(e Entity) interface{} { return *ptr(e) },
		Set: func(e Entity, v interface{}) error {
			b, err := AsBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*ptr(e) = b
			e.base().markSet(name)
			return nil
		},
	}
}

// TimeField declares a datetime field.
func TimeField(name string, ptr func(Entity) *time.Time) Field {
	return Field{
		Name: name,
		Kind: KindTime,
		Get:  func(e Entity) interface{} { return *ptr(e) },
		Set: func(e Entity, v interface{}) error {
			t, err := AsTime(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*ptr(e) = t
			e.base().markSet(name)
			return nil
		},
	}
}
