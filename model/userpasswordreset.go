package model

import "time"

// UserPasswordReset is a one-shot password reset token. Claimed resets stay
// around with their claim timestamp so a second claim can be answered with a
// specific message.
type UserPasswordReset struct {
	Base
	UserID    int64
	Token     string
	ClaimedAt time.Time
	ExpiresAt time.Time
}

// UserPasswordResetMeta describes the password reset entity.
var UserPasswordResetMeta = Register(&Metadata{
	Name:       "user_password_reset",
	Table:      "user_password_resets",
	Timestamps: true,
	Fields: []Field{
		IntField("user_id", func(e Entity) *int64 { return &e.(*UserPasswordReset).UserID }),
		HiddenStringField("token", func(e Entity) *string { return &e.(*UserPasswordReset).Token }),
		TimeField("claimed_at", func(e Entity) *time.Time { return &e.(*UserPasswordReset).ClaimedAt }),
		TimeField("expires_at", func(e Entity) *time.Time { return &e.(*UserPasswordReset).ExpiresAt }),
	},
	Filterable: []string{"user_id"},
	Orderable:  []string{"id", "created_at"},
	Parent:     "user",
	ParentKey:  "user_id",
	New:        func() Entity { return &UserPasswordReset{} },
})

// Meta implements Entity.
func (r *UserPasswordReset) Meta() *Metadata { return UserPasswordResetMeta }

// Claimed reports whether the reset token has already been used.
func (r *UserPasswordReset) Claimed() bool {
	return !r.ClaimedAt.IsZero()
}

// Expired reports whether the reset token has passed its expiry time.
func (r *UserPasswordReset) Expired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}
