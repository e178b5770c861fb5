package validate

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consumedhq/consumed/core/schema"
)

func TestRequestBodyFields(t *testing.T) {
	v := &Validator{}
	r := httptest.NewRequest("POST", "/register", strings.NewReader(
		`{"email":"anna@example.com","password":"secret","volume":0.33,"count":3,"active":true}`))

	res, err := v.Request(r,
		Field{Name: "email", Source: Body, Type: Email, Required: true},
		Field{Name: "password", Source: Body, Type: String, Required: true},
		Field{Name: "volume", Source: Body, Type: Float},
		Field{Name: "count", Source: Body, Type: Integer},
		Field{Name: "active", Source: Body, Type: Boolean},
		Field{Name: "nickname", Source: Body, Type: String},
	)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", res.String("email"))
	assert.Equal(t, "secret", res.String("password"))
	assert.Equal(t, 0.33, res.Float("volume"))
	assert.Equal(t, int64(3), res.Int("count"))
	assert.True(t, res.Bool("active"))
	assert.False(t, res.Has("nickname"))
}

func TestRequestMissingRequired(t *testing.T) {
	v := &Validator{}
	r := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"anna@example.com"}`))

	_, err := v.Request(r,
		Field{Name: "email", Source: Body, Type: Email, Required: true},
		Field{Name: "password", Source: Body, Type: String, Required: true},
	)
	require.Error(t, err)
	verr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "password", verr.Field)
	assert.True(t, verr.Missing)
}

func TestRequestInvalidTypes(t *testing.T) {
	v := &Validator{}
	cases := []struct {
		name string
		body string
		typ  Type
	}{
		{"email", `{"email":"not-an-email"}`, Email},
		{"url", `{"url":"no scheme"}`, URL},
		{"count", `{"count":1.5}`, Integer},
		{"when", `{"when":"yesterday"}`, Timestamp},
		{"flag", `{"flag":"maybe"}`, Boolean},
	}
	for _, c := range cases {
		r := httptest.NewRequest("POST", "/", strings.NewReader(c.body))
		_, err := v.Request(r, Field{Name: c.name, Source: Body, Type: c.typ, Required: true})
		require.Error(t, err, c.name)
		verr, ok := err.(*Error)
		require.True(t, ok, c.name)
		assert.Equal(t, c.name, verr.Field)
		assert.False(t, verr.Missing, c.name)
	}
}

func TestRequestQueryAndTimestamp(t *testing.T) {
	v := &Validator{}
	r := httptest.NewRequest("GET", "/my/consumptions?take=20&skip=5&from=2026-01-15", nil)

	res, err := v.Request(r,
		Field{Name: "take", Source: Query, Type: Integer},
		Field{Name: "skip", Source: Query, Type: Integer},
		Field{Name: "from", Source: Query, Type: Timestamp},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Int("take"))
	assert.Equal(t, int64(5), res.Int("skip"))
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), res.Time("from"))
}

func TestRequestStringUnescapesEntities(t *testing.T) {
	v := &Validator{}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"Fish &amp; Chips","body":"<p>a &amp; b</p>"}`))

	res, err := v.Request(r,
		Field{Name: "title", Source: Body, Type: String},
		Field{Name: "body", Source: Body, Type: HTML},
	)
	require.NoError(t, err)
	assert.Equal(t, "Fish & Chips", res.String("title"))
	assert.Equal(t, "<p>a &amp; b</p>", res.String("body"))
}

func TestRequestJSONWithSchema(t *testing.T) {
	schemas, err := schema.NewValidator([]string{`{
		"$id": "rows",
		"type": "array",
		"items": {
			"type": "object",
			"required": ["item_id", "volume"],
			"properties": {
				"item_id": {"type": "integer"},
				"volume": {"type": "number"}
			}
		}
	}`}, nil)
	require.NoError(t, err)
	v := &Validator{Schemas: schemas}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"rows":[{"item_id":1,"volume":0.5}]}`))
	res, err := v.Request(r, Field{Name: "rows", Source: Body, Type: JSON, SchemaID: "rows", Required: true})
	require.NoError(t, err)
	assert.Len(t, res.Value("rows"), 1)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"rows":[{"volume":"a lot"}]}`))
	_, err = v.Request(r, Field{Name: "rows", Source: Body, Type: JSON, SchemaID: "rows", Required: true})
	require.Error(t, err)
}
