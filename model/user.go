package model

import "time"

// User is an account holder. The password field carries the bcrypt hash and
// never serializes.
type User struct {
	Base
	GUID        string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Units       string
	Timezone    string
	CountryCode string
	City        string
	IsActive    bool
	VerifiedAt  time.Time
}

// UserMeta describes the user entity.
var UserMeta = Register(&Metadata{
	Name:       "user",
	Table:      "users",
	Timestamps: true,
	SoftDelete: true,
	Fields: []Field{
		StringField("guid", func(e Entity) *string { return &e.(*User).GUID }),
		StringField("email", func(e Entity) *string { return &e.(*User).Email }),
		HiddenStringField("password", func(e Entity) *string { return &e.(*User).Password }),
		StringField("first_name", func(e Entity) *string { return &e.(*User).FirstName }),
		StringField("last_name", func(e Entity) *string { return &e.(*User).LastName }),
		StringField("units", func(e Entity) *string { return &e.(*User).Units }),
		StringField("timezone", func(e Entity) *string { return &e.(*User).Timezone }),
		StringField("country_code", func(e Entity) *string { return &e.(*User).CountryCode }),
		StringField("city", func(e Entity) *string { return &e.(*User).City }),
		BoolField("is_active", func(e Entity) *bool { return &e.(*User).IsActive }),
		TimeField("verified_at", func(e Entity) *time.Time { return &e.(*User).VerifiedAt }),
	},
	Creatable:  []string{"email", "password", "first_name", "last_name", "units", "timezone"},
	Updatable:  []string{"first_name", "last_name", "units", "timezone", "country_code", "city"},
	Searchable: []string{"email", "first_name", "last_name"},
	Filterable: []string{"email", "is_active", "country_code"},
	Orderable:  []string{"id", "email", "first_name", "last_name", "created_at", "updated_at"},
	URIs: URIs{
		Self: []Segment{Lit("users"), Ref("id")},
	},
	New: func() Entity { return &User{} },
})

// Meta implements Entity.
func (u *User) Meta() *Metadata { return UserMeta }

// Location returns the user's timezone location, falling back to UTC when
// none is set or the name is unknown.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Verified reports whether the email address has been verified.
func (u *User) Verified() bool {
	return !u.VerifiedAt.IsZero()
}

// DisplayName returns the name to address the user by in mail and
// notifications, falling back to the email address.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Email
}
