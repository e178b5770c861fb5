// Package model implements the persistence engine behind the API: a
// registry of entity metadata, an explicit field dispatch table per entity
// and a generic store that turns metadata into SQL.
package model

import "time"

// Base carries the state every entity shares. Entities embed it and the
// store maintains it: identifier, timestamps, soft delete marker, and the
// bags for undeclared attributes, expanded relations and resource URIs.
type Base struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	// Attributes holds mapped properties that are not declared fields.
	Attributes map[string]interface{}
	// Relations holds expanded related entities by relation name.
	Relations map[string]interface{}
	// Resources holds the synthesized resource URIs by name.
	Resources map[string]string

	set map[string]bool
}

func (b *Base) base() *Base { return b }

// Exists reports whether the entity has been persisted.
func (b *Base) Exists() bool { return b.ID != 0 }

// Deleted reports whether the entity carries a soft delete marker.
func (b *Base) Deleted() bool { return b.DeletedAt != nil }

func (b *Base) markSet(name string) {
	if b.set == nil {
		b.set = make(map[string]bool)
	}
	b.set[name] = true
}

// IsSet reports whether the named field has been explicitly assigned, either
// through Map, a field setter or a database load. Insert and Update write
// exactly the set fields, so an explicitly assigned zero value is written
// like any other value.
func (b *Base) IsSet(name string) bool {
	return b.set[name]
}

// SetAttribute stores an undeclared property on the entity. Attributes are
// serialized with the entity but never persisted.
func (b *Base) SetAttribute(name string, value interface{}) {
	if b.Attributes == nil {
		b.Attributes = make(map[string]interface{})
	}
	b.Attributes[name] = value
}

func (b *Base) setRelation(name string, value interface{}) {
	if b.Relations == nil {
		b.Relations = make(map[string]interface{})
	}
	b.Relations[name] = value
}

func (b *Base) setResource(name, uri string) {
	if b.Resources == nil {
		b.Resources = make(map[string]string)
	}
	b.Resources[name] = uri
}

// Entity is implemented by every registered model type.
type Entity interface {
	Meta() *Metadata
	base() *Base
}

// BaseOf exposes the embedded Base of an entity.
func BaseOf(e Entity) *Base { return e.base() }
