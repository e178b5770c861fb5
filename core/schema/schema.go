// Package schema validates JSON documents against a set of compiled JSON
// schemas, keyed by their $id.
package schema

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// Validator holds compiled schemas keyed by their $id.
type Validator struct {
	compiled map[string]*gojsonschema.Schema
}

// NewValidator compiles the given top level schemas, with refs available as
// shared references. Every top level schema must carry a $id. Top level
// schemas cannot reference each other, only refs.
func NewValidator(schemas []string, refs []string) (*Validator, error) {
	type idOnly struct {
		ID string `json:"$id"`
	}
	v := &Validator{compiled: make(map[string]*gojsonschema.Schema)}
	for _, raw := range schemas {
		var s idOnly
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("parse error '%v' in schema: '%s'", err, raw)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("schema does not contain $id: '%s'", raw)
		}
		sl := gojsonschema.NewSchemaLoader()
		for _, ref := range refs {
			if err := sl.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
				return nil, fmt.Errorf("cannot add ref: %s", err)
			}
		}
		compiled, err := sl.Compile(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("cannot compile schema %s: %s", s.ID, err)
		}
		v.compiled[s.ID] = compiled
	}
	return v, nil
}

// HasSchema returns true if schemaID is known.
func (v *Validator) HasSchema(schemaID string) bool {
	_, ok := v.compiled[schemaID]
	return ok
}

// ValidateStruct validates a Go value against schemaID. A nil error means
// the document is valid.
func (v *Validator) ValidateStruct(doc interface{}, schemaID string) error {
	return v.validate(gojsonschema.NewGoLoader(doc), schemaID)
}

// ValidateString validates a JSON string against schemaID. A nil error means
// the document is valid.
func (v *Validator) ValidateString(doc, schemaID string) error {
	return v.validate(gojsonschema.NewStringLoader(doc), schemaID)
}

func (v *Validator) validate(loader gojsonschema.JSONLoader, schemaID string) error {
	compiled, ok := v.compiled[schemaID]
	if !ok {
		return fmt.Errorf("there is no schema %s", schemaID)
	}
	result, err := compiled.Validate(loader)
	if err != nil {
		return fmt.Errorf("cannot validate with schema %s: %s", schemaID, err)
	}
	if !result.Valid() {
		msg := "the document is not valid:\n"
		for _, e := range result.Errors() {
			msg += fmt.Sprintf("- %s\n", e)
		}
		return errors.New(msg)
	}
	return nil
}
