// Package geoip resolves a client IP address to a coarse location. Lookups
// are best effort: registration must succeed even when the lookup service is
// down, so every failure degrades to an empty location.
package geoip

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/consumedhq/consumed/core/logger"
)

// Location is the subset of lookup data we keep.
type Location struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

// Resolver looks up the location of an IP address.
type Resolver interface {
	Lookup(ctx context.Context, ip string) Location
}

// Client resolves IPs against a JSON lookup service. BaseURL is the service
// endpoint; the IP gets appended as a path segment.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a resolver for the given lookup service.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

// Lookup resolves the location of an IP address. It never fails: lookup
// errors are logged and return an empty location.
func (c *Client) Lookup(ctx context.Context, ip string) Location {
	var location Location
	if c.BaseURL == "" || ip == "" {
		return location
	}
	url := fmt.Sprintf("%s/%s", c.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return location
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		logger.FromContext(ctx).Warnln("geoip lookup failed:", err)
		return location
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		logger.FromContext(ctx).Warnln("geoip lookup status:", res.StatusCode)
		return location
	}
	if err := json.NewDecoder(res.Body).Decode(&location); err != nil {
		logger.FromContext(ctx).Warnln("geoip decode failed:", err)
		return Location{}
	}
	return location
}

// Null is a resolver that always returns an empty location.
type Null struct{}

// Lookup implements Resolver.
func (Null) Lookup(ctx context.Context, ip string) Location {
	return Location{}
}
