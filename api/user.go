package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/consumedhq/consumed/core/access"
	"github.com/consumedhq/consumed/core/imagestore"
	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/model"
)

// defaultAvatar is a 1x1 transparent PNG, written for every new account
// until the user uploads a real one.
var defaultAvatar, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d.png", userID)
}

// clientInfo derives coarse device, browser and location strings for the
// session record from the user agent and the geo lookup.
func (b *Backend) clientInfo(r *http.Request) (device, browser, location string) {
	ua := r.UserAgent()
	if ua != "" {
		device = "desktop"
		if strings.Contains(ua, "Mobile") || strings.Contains(ua, "Android") || strings.Contains(ua, "iPhone") {
			device = "mobile"
		}
	}
	switch {
	case strings.Contains(ua, "Edg/"):
		browser = "Edge"
	case strings.Contains(ua, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(ua, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "Safari/"):
		browser = "Safari"
	}
	geo := b.geoIP.Lookup(r.Context(), access.RemoteIP(r))
	switch {
	case geo.City != "" && geo.CountryName != "":
		location = geo.City + ", " + geo.CountryName
	case geo.City != "":
		location = geo.City
	default:
		location = geo.CountryName
	}
	return device, browser, location
}

// createSession opens a new login session for the user and returns the
// signed auth token.
func (b *Backend) createSession(r *http.Request, u *model.User) (string, error) {
	ctx := r.Context()
	token, err := b.generator.TokenUnique(ctx, model.UserTokenMeta.Table, "token")
	if err != nil {
		return "", err
	}
	device, browser, location := b.clientInfo(r)
	session := &model.UserToken{}
	err = model.Map(session, map[string]interface{}{
		"user_id":    u.ID,
		"token":      token,
		"device":     device,
		"browser":    browser,
		"location":   location,
		"is_active":  true,
		"expires_at": time.Now().UTC().AddDate(0, 0, b.tokenDaysValid),
	}, []string{"user_id", "token", "device", "browser", "location", "is_active", "expires_at"})
	if err != nil {
		return "", err
	}
	if err := b.store.Insert(ctx, session); err != nil {
		return "", err
	}
	return b.auth.Sign(u.ID, token)
}

// inferTimezone resolves a timezone for a new account from its client
// address: geo lookup, then country to timezone via the catalog tables,
// falling back to whatever the lookup service reported directly.
func (b *Backend) inferTimezone(r *http.Request) (timezone, countryCode, city string) {
	ctx := r.Context()
	location := b.geoIP.Lookup(ctx, access.RemoteIP(r))
	countryCode, city = location.CountryCode, location.City
	if countryCode == "" {
		return "", "", ""
	}
	tz, err := b.store.FindOne(ctx, model.TimezoneMeta, map[string]interface{}{
		"country_code": countryCode,
	})
	if err == nil {
		return tz.(*model.Timezone).Name, countryCode, city
	}
	if err != model.ErrNotFound {
		logger.FromContext(ctx).Warnln("timezone lookup failed:", err)
	}
	return location.Timezone, countryCode, city
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "email", Source: validate.Body, Type: validate.Email, Required: true},
		validate.Field{Name: "password", Source: validate.Body, Type: validate.String, Required: true},
		validate.Field{Name: "first_name", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "last_name", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "units", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "timezone", Source: validate.Body, Type: validate.String},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()

	_, err = b.store.FindOne(ctx, model.UserMeta, map[string]interface{}{"email": res.String("email")})
	if err == nil {
		output.Conflict(w, "Email already registered.")
		return
	}
	if err != model.ErrNotFound {
		b.serverError(w, r, err)
		return
	}

	guid, err := b.generator.GUIDv4Unique(ctx, model.UserMeta.Table, "guid")
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	hash, err := b.hashPassword(guid, res.String("password"))
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	u := &model.User{}
	if err := model.Map(u, res.Values(), model.UserMeta.Creatable); err != nil {
		output.ValidationFailed(w, err.Error())
		return
	}
	properties := map[string]interface{}{
		"guid":      guid,
		"password":  hash,
		"is_active": true,
	}
	if !res.Has("timezone") {
		timezone, countryCode, city := b.inferTimezone(r)
		properties["timezone"] = timezone
		properties["country_code"] = countryCode
		properties["city"] = city
	}
	if err := model.Map(u, properties, []string{"guid", "password", "is_active", "timezone", "country_code", "city"}); err != nil {
		b.serverError(w, r, err)
		return
	}
	if err := b.store.Insert(ctx, u); err != nil {
		b.serverError(w, r, err)
		return
	}

	if b.imageStore != nil {
		if err := b.imageStore.Put(ctx, avatarKey(u.ID), defaultAvatar); err != nil {
			logger.FromContext(ctx).Warnln("default avatar write failed:", err)
		}
	}

	jwt, err := b.createSession(r, u)
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	u.SetAttribute("access_token", jwt)
	model.Decorate(u, b.baseURL)
	output.OK(w, model.Present(u))
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "email", Source: validate.Body, Type: validate.Email, Required: true},
		validate.Field{Name: "password", Source: validate.Body, Type: validate.String, Required: true},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()

	e, err := b.store.FindOne(ctx, model.UserMeta, map[string]interface{}{"email": res.String("email")})
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "user", res.String("email"))
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	u := e.(*model.User)
	if !b.checkPassword(u, res.String("password")) {
		output.NotAuthorized(w, "Invalid password.")
		return
	}

	jwt, err := b.createSession(r, u)
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	u.SetAttribute("access_token", jwt)
	model.Decorate(u, b.baseURL)
	output.OK(w, model.Present(u))
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := access.IdentityFromContext(ctx)

	e, err := b.store.FindOne(ctx, model.UserTokenMeta, map[string]interface{}{
		"user_id": identity.UserID,
		"token":   identity.Token,
	})
	if err == model.ErrNotFound {
		output.NotAuthorized(w)
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	session := e.(*model.UserToken)
	err = model.Map(session, map[string]interface{}{
		"is_active":    false,
		"is_destroyed": true,
	}, []string{"is_active", "is_destroyed"})
	if err == nil {
		err = b.store.Update(ctx, session)
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	output.NoContent(w)
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := access.IdentityFromContext(ctx)

	e, err := b.store.GetByID(ctx, model.UserMeta, identity.UserID)
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "user", identity.UserID)
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	model.Decorate(e, b.baseURL)
	output.OK(w, model.Present(e))
}

// requireSelf validates the request, loads the addressed user and checks it
// is the caller. The personal API has no cross-account access. The request
// body can only be decoded once, so the handler's body fields are validated
// here alongside the path id.
func (b *Backend) requireSelf(w http.ResponseWriter, r *http.Request, fields ...validate.Field) (*model.User, *validate.Result, bool) {
	fields = append([]validate.Field{
		{Name: "id", Source: validate.Path, Type: validate.Integer, Required: true},
	}, fields...)
	res, err := b.validator.Request(r, fields...)
	if err != nil {
		writeValidationError(w, err)
		return nil, nil, false
	}
	identity, _ := access.IdentityFromContext(r.Context())
	if res.Int("id") != identity.UserID {
		output.NotAuthorized(w)
		return nil, nil, false
	}
	e, err := b.store.GetByID(r.Context(), model.UserMeta, identity.UserID)
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "user", identity.UserID)
		return nil, nil, false
	}
	if err != nil {
		b.serverError(w, r, err)
		return nil, nil, false
	}
	return e.(*model.User), res, true
}

func (b *Backend) userGet(w http.ResponseWriter, r *http.Request) {
	u, _, ok := b.requireSelf(w, r)
	if !ok {
		return
	}
	model.Decorate(u, b.baseURL)
	output.OK(w, model.Present(u))
}

func (b *Backend) userUpdate(w http.ResponseWriter, r *http.Request) {
	u, res, ok := b.requireSelf(w, r,
		validate.Field{Name: "first_name", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "last_name", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "units", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "timezone", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "country_code", Source: validate.Body, Type: validate.String},
		validate.Field{Name: "city", Source: validate.Body, Type: validate.String},
	)
	if !ok {
		return
	}
	if res.Has("timezone") {
		if _, err := time.LoadLocation(res.String("timezone")); err != nil {
			output.InvalidParameter(w, "timezone")
			return
		}
	}
	values := res.Values()
	delete(values, "id")
	if err := model.Map(u, values, model.UserMeta.Updatable); err != nil {
		output.ValidationFailed(w, err.Error())
		return
	}
	if err := b.store.Update(r.Context(), u); err != nil {
		b.serverError(w, r, err)
		return
	}
	model.Decorate(u, b.baseURL)
	output.OK(w, model.Present(u))
}

func (b *Backend) userDelete(w http.ResponseWriter, r *http.Request) {
	u, res, ok := b.requireSelf(w, r,
		validate.Field{Name: "password", Source: validate.Body, Type: validate.String, Required: true},
	)
	if !ok {
		return
	}
	// account deletion re-confirms the password
	if !b.checkPassword(u, res.String("password")) {
		output.NotAuthorized(w, "Invalid password.")
		return
	}
	ctx := r.Context()
	if err := b.store.Delete(ctx, u, false); err != nil {
		b.serverError(w, r, err)
		return
	}
	b.disableSessions(r, u.ID)
	output.NoContent(w)
}

// disableSessions switches off every active session of a user, best effort.
func (b *Backend) disableSessions(r *http.Request, userID int64) {
	ctx := r.Context()
	sessions, err := b.store.FindBy(ctx, model.UserTokenMeta, map[string]interface{}{
		"user_id":   userID,
		"is_active": true,
	}, model.FindOptions{Take: model.MaxTake})
	if err != nil {
		logger.FromContext(ctx).Warnln("session disable lookup failed:", err)
		return
	}
	for _, e := range sessions {
		session := e.(*model.UserToken)
		err := model.Map(session, map[string]interface{}{"is_active": false}, []string{"is_active"})
		if err == nil {
			err = b.store.Update(ctx, session)
		}
		if err != nil {
			logger.FromContext(ctx).Warnln("session disable failed:", err)
		}
	}
}

func (b *Backend) userAvatarUpload(w http.ResponseWriter, r *http.Request) {
	u, res, ok := b.requireSelf(w, r,
		validate.Field{Name: "data", Source: validate.Body, Type: validate.String, Required: true},
	)
	if !ok {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(res.String("data"))
	if err != nil {
		output.InvalidParameter(w, "data")
		return
	}
	if b.imageStore == nil {
		b.serverError(w, r, fmt.Errorf("no image store configured"))
		return
	}
	if err := b.imageStore.Put(r.Context(), avatarKey(u.ID), raw); err != nil {
		b.serverError(w, r, err)
		return
	}
	output.OK(w, map[string]interface{}{
		"avatar_uri": fmt.Sprintf("%s/users/%d/avatar", b.baseURL, u.ID),
	})
}

func (b *Backend) userAvatarGet(w http.ResponseWriter, r *http.Request) {
	u, _, ok := b.requireSelf(w, r)
	if !ok {
		return
	}
	if b.imageStore == nil {
		output.NotFound(w, "No avatar available.")
		return
	}
	data, err := b.imageStore.Get(r.Context(), avatarKey(u.ID))
	if err == imagestore.ErrNotFound {
		output.NotFound(w, "No avatar available.")
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
