package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consumedhq/consumed/core/csql"
	"github.com/consumedhq/consumed/core/geoip"
	"github.com/consumedhq/consumed/core/mail"
	"github.com/consumedhq/consumed/jobs"
	"github.com/consumedhq/consumed/model"
)

func TestHashAndCheckPassword(t *testing.T) {
	b := &Backend{pepper: "pepper"}
	hash, err := b.hashPassword("guid-1", "secret")
	require.NoError(t, err)

	u := &model.User{GUID: "guid-1", Password: hash}
	assert.True(t, b.checkPassword(u, "secret"))
	assert.False(t, b.checkPassword(u, "wrong"))

	// same password, different guid salt
	other := &model.User{GUID: "guid-2", Password: hash}
	assert.False(t, b.checkPassword(other, "secret"))
}

func TestCatalogRoutesAreRegistered(t *testing.T) {
	for path, name := range catalogs {
		_, ok := model.Lookup(name)
		assert.True(t, ok, "catalog %s resolves to unregistered %s", path, name)
	}
}

func TestImportSchema(t *testing.T) {
	schemas := importSchemas()

	assert.NoError(t, schemas.ValidateString(`[{"item_id":1,"volume":0.5}]`, "consumption-import"))
	assert.Error(t, schemas.ValidateString(`[]`, "consumption-import"), "empty batch")
	assert.Error(t, schemas.ValidateString(`[{"volume":0.5}]`, "consumption-import"), "missing item_id")
	assert.Error(t, schemas.ValidateString(`[{"item_id":1,"volume":-1}]`, "consumption-import"), "negative volume")
	assert.Error(t, schemas.ValidateString(`[{"item_id":1,"volume":1,"extra":true}]`, "consumption-import"), "unknown key")
}

// testBackend assembles a full backend against the POSTGRES test database.
func testBackend(t *testing.T) (*Backend, *mux.Router) {
	t.Helper()
	dsn := os.Getenv("POSTGRES")
	if dsn == "" {
		t.Skip("no POSTGRES environment variable, skipping database test")
	}
	db := csql.OpenWithSchema(dsn, "consumed_api_test")
	db.ClearSchema()
	t.Cleanup(func() {
		db.ClearSchema()
		db.Close()
	})
	router := mux.NewRouter()
	backend := New(&Builder{
		DB:          db,
		Router:      router,
		Env:         "test",
		BaseURL:     "http://localhost:3000",
		TokenSecret: "test-secret",
	})
	return backend, router
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, router *mux.Router, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	var env envelope
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func seedItem(t *testing.T, b *Backend, title string, defaultVolume float64) *model.Item {
	t.Helper()
	ctx := context.Background()
	category, err := b.store.FindOne(ctx, model.ItemCategoryMeta, map[string]interface{}{"slug": "beer"})
	if err == model.ErrNotFound {
		fresh := &model.ItemCategory{}
		require.NoError(t, model.Map(fresh, map[string]interface{}{
			"title": "beer", "slug": "beer",
		}, model.ItemCategoryMeta.Creatable))
		require.NoError(t, b.store.Insert(ctx, fresh))
		category, err = fresh, nil
	}
	require.NoError(t, err)

	item := &model.Item{}
	require.NoError(t, model.Map(item, map[string]interface{}{
		"title":            title,
		"slug":             title,
		"item_category_id": model.BaseOf(category).ID,
		"default_volume":   defaultVolume,
	}, model.ItemMeta.Creatable))
	require.NoError(t, b.store.Insert(ctx, item))
	return item
}

func TestUserAndConsumptionFlow(t *testing.T) {
	backend, router := testBackend(t)
	item := seedItem(t, backend, "Pale Ale", 0.33)

	// register
	code, env := call(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email":      "anna@example.com",
		"password":   "secret",
		"first_name": "Anna",
		"last_name":  "Example",
		"units":      "metric",
		"timezone":   "Europe/Berlin",
	})
	require.Equal(t, http.StatusOK, code, "register: %+v", env.Error)
	var registered map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	token, _ := registered["access_token"].(string)
	require.NotEmpty(t, token)
	_, hasPassword := registered["password"]
	assert.False(t, hasPassword)

	// duplicate email conflicts
	code, env = call(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "anna@example.com", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, code)

	// login wrong password
	code, env = call(t, router, http.MethodPost, "/login", "", map[string]interface{}{
		"email": "anna@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid password.", env.Error.Message)

	// login unknown email
	code, _ = call(t, router, http.MethodPost, "/login", "", map[string]interface{}{
		"email": "nobody@example.com", "password": "secret",
	})
	assert.Equal(t, http.StatusNotFound, code)

	// me
	code, env = call(t, router, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "anna@example.com", me["email"])
	assert.Equal(t, "Anna", me["first_name"])
	userID := int64(me["id"].(float64))

	// profile update
	code, env = call(t, router, http.MethodPatch, fmt.Sprintf("/users/%d", userID), token,
		map[string]interface{}{"first_name": "Anne", "units": "imperial"})
	require.Equal(t, http.StatusOK, code, "update: %+v", env.Error)
	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Anne", profile["first_name"])
	assert.Equal(t, "imperial", profile["units"])
	assert.Equal(t, "Example", profile["last_name"])

	// unauthenticated
	code, _ = call(t, router, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// create consumption, volume defaults from the item
	code, env = call(t, router, http.MethodPost, "/my/consumptions", token, map[string]interface{}{
		"item_id": item.ID,
		"notes":   "after work with Ben",
	})
	require.Equal(t, http.StatusOK, code, "create: %+v", env.Error)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 0.33, created["volume"])
	assert.Equal(t, "after work with Ben", created["notes"])
	consumptionID := int64(created["id"].(float64))

	// search matches the notes
	code, env = call(t, router, http.MethodGet, "/my/consumptions?query=ben", token, nil)
	require.Equal(t, http.StatusOK, code, "search: %+v", env.Error)
	var matches []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &matches))
	require.Len(t, matches, 1)
	code, env = call(t, router, http.MethodGet, "/my/consumptions?query=nomatch", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &matches))
	assert.Len(t, matches, 0)

	// unknown item fails before insert
	code, _ = call(t, router, http.MethodPost, "/my/consumptions", token, map[string]interface{}{
		"item_id": 99999,
	})
	assert.Equal(t, http.StatusNotFound, code)

	// list with expansion
	code, env = call(t, router, http.MethodGet, "/my/consumptions?expand=item", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	expanded, _ := list[0]["item"].(map[string]interface{})
	require.NotNil(t, expanded)
	assert.Equal(t, "Pale Ale", expanded["title"])

	// update writes an explicit zero volume
	code, env = call(t, router, http.MethodPatch, fmt.Sprintf("/my/consumptions/%d", consumptionID),
		token, map[string]interface{}{"volume": 0})
	require.Equal(t, http.StatusOK, code)
	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 0.0, updated["volume"])

	// chart and summary displays
	code, env = call(t, router, http.MethodGet, "/my/consumptions?display=chart&group=day&period=last-7-days", token, nil)
	require.Equal(t, http.StatusOK, code, "chart: %+v", env.Error)
	var chart model.Chart
	require.NoError(t, json.Unmarshal(env.Data, &chart))
	assert.Len(t, chart.Labels, 7)

	code, env = call(t, router, http.MethodGet, "/my/consumptions?display=summary", token, nil)
	require.Equal(t, http.StatusOK, code)
	var summary model.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	require.Len(t, summary.Categories, 1)
	assert.Equal(t, "beer", summary.Categories[0].Category)

	// invalid chart parameters fail before querying
	code, _ = call(t, router, http.MethodGet, "/my/consumptions?display=chart&group=decade", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, router, http.MethodGet, "/my/consumptions?display=chart&period=custom", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	// batch import
	code, env = call(t, router, http.MethodPost, "/my/consumptions/import", token, map[string]interface{}{
		"rows": []map[string]interface{}{
			{"item_id": item.ID, "volume": 0.5},
			{"item_id": item.ID, "volume": 0.25, "consumed_at": "2026-08-20T19:00:00Z"},
		},
	})
	require.Equal(t, http.StatusOK, code, "import: %+v", env.Error)
	var imported map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &imported))
	assert.Equal(t, 2, imported["imported"])

	// delete then read back
	code, _ = call(t, router, http.MethodDelete, fmt.Sprintf("/my/consumptions/%d", consumptionID), token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = call(t, router, http.MethodGet, fmt.Sprintf("/my/consumptions/%d", consumptionID), token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// logout kills the session
	code, _ = call(t, router, http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, env = call(t, router, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, env.Error.Message, "disabled")
}

type stubGeo struct{}

func (stubGeo) Lookup(ctx context.Context, ip string) geoip.Location {
	return geoip.Location{CountryCode: "DE", CountryName: "Germany", City: "Berlin", Timezone: "Europe/Berlin"}
}

func TestSessionRecordsClientInfo(t *testing.T) {
	backend, router := testBackend(t)
	backend.geoIP = stubGeo{}

	body, err := json.Marshal(map[string]interface{}{
		"email": "mobile@example.com", "password": "secret", "timezone": "Europe/Berlin",
	})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	r.Header.Set("User-Agent",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	e, err := backend.store.FindOne(ctx, model.UserMeta, map[string]interface{}{"email": "mobile@example.com"})
	require.NoError(t, err)
	sessions, err := backend.store.FindBy(ctx, model.UserTokenMeta,
		map[string]interface{}{"user_id": model.BaseOf(e).ID}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	session := sessions[0].(*model.UserToken)
	assert.Equal(t, "mobile", session.Device)
	assert.Equal(t, "Safari", session.Browser)
	assert.Equal(t, "Berlin, Germany", session.Location)
}

// failingSender simulates a mail outage.
type failingSender struct{}

func (failingSender) Send(ctx context.Context, msg mail.Message) error {
	return fmt.Errorf("smtp connection refused")
}

func TestPasswordResetFlow(t *testing.T) {
	backend, router := testBackend(t)
	// mail delivery is fire and forget, a broken mailer must not break the flow
	backend.mailer = failingSender{}

	code, env := call(t, router, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "reset@example.com", "password": "oldpass",
	})
	require.Equal(t, http.StatusOK, code, "register: %+v", env.Error)

	code, _ = call(t, router, http.MethodPost, "/password-resets/request", "", map[string]interface{}{
		"email": "reset@example.com",
	})
	require.Equal(t, http.StatusNoContent, code)

	// unknown email
	code, _ = call(t, router, http.MethodPost, "/password-resets/request", "", map[string]interface{}{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusNotFound, code)

	// the reset token arrives by mail; fish it out of the store instead
	ctx := context.Background()
	e, err := backend.store.FindOne(ctx, model.UserMeta, map[string]interface{}{"email": "reset@example.com"})
	require.NoError(t, err)
	resets, err := backend.store.FindBy(ctx, model.UserPasswordResetMeta,
		map[string]interface{}{"user_id": model.BaseOf(e).ID}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, resets, 1)
	resetToken := resets[0].(*model.UserPasswordReset).Token

	code, _ = call(t, router, http.MethodPost, "/password-resets/reset", "", map[string]interface{}{
		"token": resetToken, "password": "newpass",
	})
	require.Equal(t, http.StatusNoContent, code)

	// new password works, old one is gone
	code, _ = call(t, router, http.MethodPost, "/login", "", map[string]interface{}{
		"email": "reset@example.com", "password": "newpass",
	})
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, router, http.MethodPost, "/login", "", map[string]interface{}{
		"email": "reset@example.com", "password": "oldpass",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	// the claim leaves a timestamp behind
	resets, err = backend.store.FindBy(ctx, model.UserPasswordResetMeta,
		map[string]interface{}{"user_id": model.BaseOf(e).ID}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, resets, 1)
	claimed := resets[0].(*model.UserPasswordReset)
	assert.True(t, claimed.Claimed())
	assert.False(t, claimed.ClaimedAt.IsZero())

	// claim once only
	code, env = call(t, router, http.MethodPost, "/password-resets/reset", "", map[string]interface{}{
		"token": resetToken, "password": "again",
	})
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "Reset token already claimed.", env.Error.Message)
}

func TestCatalogEndpoints(t *testing.T) {
	backend, router := testBackend(t)
	seedItem(t, backend, "Pilsner", 0.5)

	code, env := call(t, router, http.MethodGet, "/items?query=pils", "", nil)
	require.Equal(t, http.StatusOK, code)
	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Pilsner", items[0]["title"])

	code, _ = call(t, router, http.MethodGet, "/items?orderBy=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, http.MethodGet, "/items/99999", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, router, http.MethodGet, "/item-categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	var cats []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Len(t, cats, 1)
}

func TestCronEndpointRequiresAllowlistedIP(t *testing.T) {
	_, router := testBackend(t)

	r := httptest.NewRequest(http.MethodGet, "/external/crons/scheduler", nil)
	r.RemoteAddr = "203.0.113.9:4711"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronSchedulerRecordsRun(t *testing.T) {
	backend, _ := testBackend(t)

	r := httptest.NewRequest(http.MethodGet, "/external/crons/scheduler", nil)
	w := httptest.NewRecorder()
	backend.cronScheduler(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries, err := backend.store.FindBy(context.Background(), model.CronLogMeta,
		map[string]interface{}{"job_key": jobs.WeeklySummaryJob.Key}, model.FindOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0].(*model.CronLog)
	assert.Contains(t, entry.Output, "notified")
	assert.False(t, entry.StartedAt.IsZero())
	assert.False(t, entry.EndedAt.IsZero())
}
