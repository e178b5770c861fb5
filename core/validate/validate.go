// Package validate implements declarative request validation. A handler
// declares the fields it accepts, where they come from and what type they
// must have; Request extracts and coerces them in one pass and fails fast
// on the first missing required field.
package validate

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/consumedhq/consumed/core/schema"
)

// Source tells the validator where to read a field from.
type Source int

const (
	// Query reads the field from the URL query string.
	Query Source = iota
	// Body reads the field from the JSON request body.
	Body
	// Path reads the field from the route variables.
	Path
)

// Type is the expected type of a field. Coercion is lenient where JSON is
// lenient: numbers arrive as float64, query parameters as strings.
type Type int

const (
	String Type = iota
	Integer
	Float
	Boolean
	Email
	URL
	JSON
	HTML
	Timestamp
	Mixed
)

// Field declares one accepted request parameter.
type Field struct {
	Name     string
	Source   Source
	Type     Type
	Required bool
	// SchemaID validates a JSON field against a registered schema.
	SchemaID string
}

// Error reports a field that failed validation. Missing distinguishes an
// absent required field from a present but malformed one.
type Error struct {
	Field   string
	Missing bool
}

func (e *Error) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing parameter `%s`", e.Field)
	}
	return fmt.Sprintf("invalid parameter `%s`", e.Field)
}

// Validator extracts and coerces declared fields from requests.
type Validator struct {
	Schemas *schema.Validator
}

// Result holds the validated field values.
type Result struct {
	values map[string]interface{}
}

// Has returns true if the field was provided.
func (res *Result) Has(name string) bool {
	_, ok := res.values[name]
	return ok
}

// Value returns the coerced value of a field, or nil if it was not provided.
func (res *Result) Value(name string) interface{} {
	return res.values[name]
}

// Values returns all provided fields as a map.
func (res *Result) Values() map[string]interface{} {
	return res.values
}

// String returns a string field, or the empty string if absent.
func (res *Result) String(name string) string {
	s, _ := res.values[name].(string)
	return s
}

// Int returns an integer field, or zero if absent.
func (res *Result) Int(name string) int64 {
	n, _ := res.values[name].(int64)
	return n
}

// Float returns a float field, or zero if absent.
func (res *Result) Float(name string) float64 {
	f, _ := res.values[name].(float64)
	return f
}

// Bool returns a boolean field, or false if absent.
func (res *Result) Bool(name string) bool {
	b, _ := res.values[name].(bool)
	return b
}

// Time returns a timestamp field, or the zero time if absent.
func (res *Result) Time(name string) time.Time {
	t, _ := res.values[name].(time.Time)
	return t
}

// coercers maps each field type to its coercion function. The second return
// value reports whether the raw value could be coerced.
var coercers = map[Type]func(raw interface{}) (interface{}, bool){
	String:    coerceString,
	Integer:   coerceInteger,
	Float:     coerceFloat,
	Boolean:   coerceBoolean,
	Email:     coerceEmail,
	URL:       coerceURL,
	JSON:      coerceJSON,
	HTML:      coerceHTML,
	Timestamp: coerceTimestamp,
	Mixed:     func(raw interface{}) (interface{}, bool) { return raw, true },
}

func coerceString(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	return html.UnescapeString(s), true
}

func coerceHTML(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	return s, ok
}

func coerceInteger(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return nil, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, false
		}
		return n, true
	}
	return nil, false
}

func coerceFloat(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func coerceBoolean(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return nil, false
}

func coerceEmail(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return nil, false
	}
	return strings.ToLower(s), true
}

func coerceURL(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return s, true
}

func coerceJSON(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}, []interface{}:
		return v, true
	case string:
		var doc interface{}
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, false
		}
		return doc, true
	}
	return nil, false
}

// timestampLayouts are tried in order when parsing timestamp fields.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTimestamp(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}

func decodeBody(r *http.Request) (map[string]interface{}, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Request validates the request against the declared fields. It returns the
// first validation error: a missing required field or a field that could not
// be coerced to its declared type. Optional fields that are absent simply do
// not appear in the result.
func (v *Validator) Request(r *http.Request, fields ...Field) (*Result, error) {
	body, err := decodeBody(r)
	if err != nil {
		return nil, &Error{Field: "body"}
	}
	vars := mux.Vars(r)
	query := r.URL.Query()

	result := &Result{values: make(map[string]interface{})}
	for _, field := range fields {
		var raw interface{}
		var present bool
		switch field.Source {
		case Query:
			if query.Has(field.Name) {
				raw, present = query.Get(field.Name), true
			}
		case Body:
			raw, present = body[field.Name]
		case Path:
			var s string
			s, present = vars[field.Name]
			raw = s
		}
		if !present || raw == nil {
			if field.Required {
				return nil, &Error{Field: field.Name, Missing: true}
			}
			continue
		}
		coerce, ok := coercers[field.Type]
		if !ok {
			return nil, fmt.Errorf("validate: unknown type for field %s", field.Name)
		}
		value, ok := coerce(raw)
		if !ok {
			return nil, &Error{Field: field.Name}
		}
		if field.Type == JSON && field.SchemaID != "" {
			if v.Schemas == nil {
				return nil, fmt.Errorf("validate: no schema validator configured for field %s", field.Name)
			}
			if err := v.Schemas.ValidateStruct(value, field.SchemaID); err != nil {
				return nil, &Error{Field: field.Name}
			}
		}
		result.values[field.Name] = value
	}
	return result, nil
}
