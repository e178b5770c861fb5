package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/203.0.113.9", r.URL.Path)
		w.Write([]byte(`{"country_code":"DE","country_name":"Germany","city":"Berlin","timezone":"Europe/Berlin"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	location := client.Lookup(context.Background(), "203.0.113.9")
	assert.Equal(t, "DE", location.CountryCode)
	assert.Equal(t, "Berlin", location.City)
	assert.Equal(t, "Europe/Berlin", location.Timezone)
}

func TestLookupDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.Equal(t, Location{}, client.Lookup(context.Background(), "203.0.113.9"))

	// no service configured at all
	assert.Equal(t, Location{}, NewClient("").Lookup(context.Background(), "203.0.113.9"))
	assert.Equal(t, Location{}, Null{}.Lookup(context.Background(), "203.0.113.9"))
}
