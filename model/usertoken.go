package model

import "time"

// UserToken is one login session. The token value is what auth JWT claims
// carry; invalidating the row invalidates every JWT minted for it. Device,
// browser and location describe the client that opened the session.
type UserToken struct {
	Base
	UserID      int64
	Token       string
	Device      string
	Browser     string
	Location    string
	IsActive    bool
	IsDestroyed bool
	ExpiresAt   time.Time
}

// UserTokenMeta describes the session token entity.
var UserTokenMeta = Register(&Metadata{
	Name:       "user_token",
	Table:      "user_tokens",
	Timestamps: true,
	Fields: []Field{
		IntField("user_id", func(e Entity) *int64 { return &e.(*UserToken).UserID }),
		HiddenStringField("token", func(e Entity) *string { return &e.(*UserToken).Token }),
		StringField("device", func(e Entity) *string { return &e.(*UserToken).Device }),
		StringField("browser", func(e Entity) *string { return &e.(*UserToken).Browser }),
		StringField("location", func(e Entity) *string { return &e.(*UserToken).Location }),
		BoolField("is_active", func(e Entity) *bool { return &e.(*UserToken).IsActive }),
		BoolField("is_destroyed", func(e Entity) *bool { return &e.(*UserToken).IsDestroyed }),
		TimeField("expires_at", func(e Entity) *time.Time { return &e.(*UserToken).ExpiresAt }),
	},
	Filterable: []string{"user_id", "is_active"},
	Orderable:  []string{"id", "created_at"},
	Parent:     "user",
	ParentKey:  "user_id",
	New:        func() Entity { return &UserToken{} },
})

// Meta implements Entity.
func (t *UserToken) Meta() *Metadata { return UserTokenMeta }

// Disabled reports whether the session has been switched off, by logout or
// by revocation.
func (t *UserToken) Disabled() bool {
	return !t.IsActive || t.IsDestroyed
}

// Expired reports whether the session has passed its expiry time.
func (t *UserToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}
