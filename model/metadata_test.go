package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryContainsAllEntities(t *testing.T) {
	for _, name := range []string{
		"user", "user_token", "user_password_reset", "user_consumption",
		"item", "item_category", "item_type", "volume_definition",
		"country", "timezone", "request_log", "user_request_log", "cron_log",
	} {
		_, ok := Lookup(name)
		assert.True(t, ok, "missing registration for %s", name)
	}
	assert.NotPanics(t, MustValidate)
}

func TestRegisterRejectsUndeclaredWhitelistEntry(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Metadata{
			Name:      "broken_widget",
			Table:     "broken_widgets",
			Orderable: []string{"no_such_field"},
			New:       func() Entity { return &User{} },
		})
	})
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Metadata{
			Name:  "user",
			Table: "users",
			New:   func() Entity { return &User{} },
		})
	})
}

func TestParseOrderBy(t *testing.T) {
	meta := UserConsumptionMeta

	clause, err := ParseOrderBy(meta, "")
	require.NoError(t, err)
	assert.Equal(t, `"id" ASC`, clause)

	clause, err = ParseOrderBy(meta, "volume")
	require.NoError(t, err)
	assert.Equal(t, `"volume" ASC`, clause)

	clause, err = ParseOrderBy(meta, "+consumed_at")
	require.NoError(t, err)
	assert.Equal(t, `"consumed_at" ASC`, clause)

	clause, err = ParseOrderBy(meta, "-created_at")
	require.NoError(t, err)
	assert.Equal(t, `"created_at" DESC`, clause)

	_, err = ParseOrderBy(meta, "user_id")
	assert.ErrorIs(t, err, ErrNotOrderable)

	_, err = ParseOrderBy(meta, "-password")
	assert.ErrorIs(t, err, ErrNotOrderable)
}

func TestFieldDispatch(t *testing.T) {
	u := &User{}
	field, ok := UserMeta.FieldByName("email")
	require.True(t, ok)

	require.NoError(t, field.Set(u, "anna@example.com"))
	assert.Equal(t, "anna@example.com", u.Email)
	assert.Equal(t, "anna@example.com", field.Get(u))
	assert.True(t, u.IsSet("email"))
	assert.False(t, u.IsSet("first_name"))

	assert.Error(t, field.Set(u, 42))
}

func TestLinkTableDetection(t *testing.T) {
	assert.True(t, UserRequestLogMeta.IsLinkTable())
	assert.False(t, UserMeta.IsLinkTable())
}
