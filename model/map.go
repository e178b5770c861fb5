package model

import (
	"context"
	"fmt"
	"strings"
)

// Map assigns the given properties onto the entity. Only names from the
// allowed whitelist go through the field dispatch table; a whitelisted name
// that is not a declared field is a registration bug and surfaces as an
// error. Properties outside the whitelist land in the attribute bag so
// callers can round-trip extra payload data without persisting it.
func Map(e Entity, properties map[string]interface{}, allowed []string) error {
	meta := e.Meta()
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}
	for name, value := range properties {
		if !allowedSet[name] {
			e.base().SetAttribute(name, value)
			continue
		}
		field, ok := meta.FieldByName(name)
		if !ok {
			return fmt.Errorf("model: %s allows unmapped field %s", meta.Name, name)
		}
		if err := field.Set(e, value); err != nil {
			return err
		}
	}
	return nil
}

// Present serializes an entity into a plain map for the response encoder.
// Hidden fields are skipped, expanded relations are presented recursively
// and resource URIs are attached when they have been decorated.
func Present(e Entity) map[string]interface{} {
	meta := e.Meta()
	b := e.base()
	out := make(map[string]interface{})
	out[meta.PrimaryKey] = b.ID
	for _, field := range meta.Fields {
		if field.Hidden {
			continue
		}
		out[field.Name] = field.Get(e)
	}
	if meta.Timestamps {
		out["created_at"] = b.CreatedAt
		out["updated_at"] = b.UpdatedAt
	}
	for name, value := range b.Attributes {
		out[name] = value
	}
	for name, value := range b.Relations {
		if related, ok := value.(Entity); ok {
			out[name] = Present(related)
		} else {
			out[name] = value
		}
	}
	if len(b.Resources) > 0 {
		out["resource_uris"] = b.Resources
	}
	return out
}

// PresentAll serializes a slice of entities.
func PresentAll(entities []Entity) []map[string]interface{} {
	out := make([]map[string]interface{}, len(entities))
	for i, e := range entities {
		out[i] = Present(e)
	}
	return out
}

func renderSegments(e Entity, baseURL string, segments []Segment) (string, bool) {
	meta := e.Meta()
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(baseURL, "/"))
	for _, seg := range segments {
		sb.WriteByte('/')
		if seg.Literal != "" {
			sb.WriteString(seg.Literal)
			continue
		}
		if seg.Field == meta.PrimaryKey {
			sb.WriteString(fmt.Sprintf("%d", e.base().ID))
			continue
		}
		field, ok := meta.FieldByName(seg.Field)
		if !ok {
			return "", false
		}
		sb.WriteString(fmt.Sprintf("%v", field.Get(e)))
	}
	return sb.String(), true
}

// Decorate recomputes the resource URIs of a persisted entity from its URI
// templates. Entities without an identifier stay undecorated.
func Decorate(e Entity, baseURL string) {
	meta := e.Meta()
	b := e.base()
	if b.ID == 0 {
		return
	}
	if len(meta.URIs.Self) > 0 {
		if uri, ok := renderSegments(e, baseURL, meta.URIs.Self); ok {
			b.setResource("self", uri)
		}
	}
	if len(meta.URIs.Parent) > 0 {
		if uri, ok := renderSegments(e, baseURL, meta.URIs.Parent); ok {
			b.setResource("parent", uri)
		}
	}
	for name, segments := range meta.URIs.Reference {
		if uri, ok := renderSegments(e, baseURL, segments); ok {
			b.setResource(name, uri)
		}
	}
}

// Expand loads the named relations of a persisted entity. With no names it
// loads every declared relation. Relations with a zero foreign key resolve
// to nil.
func (s *Store) Expand(ctx context.Context, e Entity, names ...string) error {
	meta := e.Meta()
	if !e.base().Exists() {
		return ErrNotInitialized
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	for _, rel := range meta.Expandable {
		if len(names) > 0 && !wanted[rel.Name] {
			continue
		}
		field, _ := meta.FieldByName(rel.Field)
		fk, err := AsInt(field.Get(e))
		if err != nil {
			return err
		}
		if fk == 0 {
			e.base().setRelation(rel.Name, nil)
			continue
		}
		target, ok := Lookup(rel.Target)
		if !ok {
			return fmt.Errorf("model: %s expandable %s targets unregistered %s", meta.Name, rel.Name, rel.Target)
		}
		related, err := s.GetByID(ctx, target, fk)
		if err != nil {
			if err == ErrNotFound {
				e.base().setRelation(rel.Name, nil)
				continue
			}
			return err
		}
		Decorate(related, s.BaseURL)
		e.base().setRelation(rel.Name, related)
	}
	return nil
}
