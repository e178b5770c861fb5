package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapWhitelist(t *testing.T) {
	u := &User{}
	err := Map(u, map[string]interface{}{
		"email":      "anna@example.com",
		"first_name": "Anna",
		"is_admin":   true,
	}, UserMeta.Creatable)
	require.NoError(t, err)

	assert.Equal(t, "anna@example.com", u.Email)
	assert.Equal(t, "Anna", u.FirstName)
	// not creatable, lands in the attribute bag
	assert.Equal(t, true, u.Attributes["is_admin"])
	assert.False(t, u.IsSet("is_admin"))
}

func TestMapConversion(t *testing.T) {
	c := &UserConsumption{}
	err := Map(c, map[string]interface{}{
		"item_id":     float64(3), // JSON numbers decode as float64
		"volume":      0.5,
		"consumed_at": "2026-08-30T18:30:00Z",
	}, UserConsumptionMeta.Creatable)
	require.NoError(t, err)

	assert.Equal(t, int64(3), c.ItemID)
	assert.Equal(t, 0.5, c.Volume)
	assert.Equal(t, time.Date(2026, 8, 30, 18, 30, 0, 0, time.UTC), c.ConsumedAt)
}

func TestMapRejectsBadDatetime(t *testing.T) {
	c := &UserConsumption{}
	err := Map(c, map[string]interface{}{
		"consumed_at": "not a datetime",
	}, UserConsumptionMeta.Creatable)
	assert.Error(t, err)
}

func TestPresentHidesPassword(t *testing.T) {
	u := &User{Email: "anna@example.com", Password: "$2a$10$hash"}
	u.ID = 7
	out := Present(u)
	assert.Equal(t, "anna@example.com", out["email"])
	_, hasPassword := out["password"]
	assert.False(t, hasPassword)
	assert.Equal(t, int64(7), out["id"])
}

func TestDecorateResources(t *testing.T) {
	c := &UserConsumption{UserID: 7, ItemID: 3}
	c.ID = 11
	Decorate(c, "https://api.example.com/")

	require.NotNil(t, c.Resources)
	assert.Equal(t, "https://api.example.com/my/consumptions/11", c.Resources["self"])
	assert.Equal(t, "https://api.example.com/users/7", c.Resources["parent"])
	assert.Equal(t, "https://api.example.com/items/3", c.Resources["item"])
}

func TestDecorateSkipsUnsaved(t *testing.T) {
	c := &UserConsumption{UserID: 7}
	Decorate(c, "https://api.example.com")
	assert.Nil(t, c.Resources)
}

func TestPresentIncludesRelations(t *testing.T) {
	item := &Item{Title: "Pale Ale"}
	item.ID = 3
	c := &UserConsumption{ItemID: 3}
	c.ID = 11
	c.setRelation("item", item)

	out := Present(c)
	related, ok := out["item"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Pale Ale", related["title"])
}
