// Package api wires the HTTP surface: route registration, authentication,
// request logging and the controllers on top of the model store.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/consumedhq/consumed/core/access"
	"github.com/consumedhq/consumed/core/csql"
	"github.com/consumedhq/consumed/core/generator"
	"github.com/consumedhq/consumed/core/geoip"
	"github.com/consumedhq/consumed/core/imagestore"
	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/mail"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/jobs"
	"github.com/consumedhq/consumed/model"
)

// Builder is the input to New. DB and Router are mandatory; the
// collaborators default to their local implementations.
type Builder struct {
	DB     *csql.DB
	Router *mux.Router

	Env            string
	BaseURL        string
	TokenSecret    string
	PasswordPepper string
	TokenDaysValid int
	CronAllowedIPs []string

	ImageStore imagestore.Driver
	Mailer     mail.Sender
	GeoIP      geoip.Resolver
	Notifier   jobs.Notifier
}

// Backend is the assembled API.
type Backend struct {
	store     *model.Store
	generator *generator.Generator
	validator *validate.Validator
	auth      *access.TokenAuth

	imageStore imagestore.Driver
	mailer     mail.Sender
	geoIP      geoip.Resolver
	notifier   jobs.Notifier

	env            string
	baseURL        string
	pepper         string
	tokenDaysValid int
}

// New assembles the backend and registers all routes on the builder's
// router. It also brings the database schema up to date, so a freshly
// created backend is ready to serve.
func New(b *Builder) *Backend {
	if b.DB == nil || b.Router == nil {
		panic("api: builder needs a database and a router")
	}
	if b.TokenSecret == "" {
		panic("api: builder needs a token secret")
	}
	backend := &Backend{
		store:          model.NewStore(b.DB, b.BaseURL),
		generator:      &generator.Generator{DB: b.DB},
		validator:      &validate.Validator{Schemas: importSchemas()},
		auth:           &access.TokenAuth{Secret: []byte(b.TokenSecret), Env: b.Env},
		imageStore:     b.ImageStore,
		mailer:         b.Mailer,
		geoIP:          b.GeoIP,
		notifier:       b.Notifier,
		env:            b.Env,
		baseURL:        b.BaseURL,
		pepper:         b.PasswordPepper,
		tokenDaysValid: b.TokenDaysValid,
	}
	if backend.mailer == nil {
		backend.mailer = mail.LogSender{}
	}
	if backend.geoIP == nil {
		backend.geoIP = geoip.Null{}
	}
	if backend.notifier == nil {
		backend.notifier = jobs.LogNotifier{}
	}
	if backend.tokenDaysValid <= 0 {
		backend.tokenDaysValid = 30
	}

	model.MustValidate()
	ctx, rlog := logger.ContextWithLogger(context.Background())
	if err := backend.store.UpdateSchema(ctx); err != nil {
		panic(err)
	}
	rlog.Infoln("database schema up to date")

	backend.routes(b.Router, b.CronAllowedIPs)
	return backend
}

// Store exposes the model store, mainly for tests and jobs.
func (b *Backend) Store() *model.Store { return b.store }

func (b *Backend) routes(router *mux.Router, cronAllowedIPs []string) {
	router.Use(b.requestLogMiddleware)

	// public
	router.HandleFunc("/register", b.register).Methods(http.MethodPost)
	router.HandleFunc("/login", b.login).Methods(http.MethodPost)
	router.HandleFunc("/password-resets/request", b.passwordResetRequest).Methods(http.MethodPost)
	router.HandleFunc("/password-resets/reset", b.passwordResetReset).Methods(http.MethodPost)
	b.catalogRoutes(router)

	// authenticated
	authed := router.NewRoute().Subrouter()
	authed.Use(b.auth.Middleware(sessionStore{store: b.store}))
	authed.Use(b.linkRequestLogMiddleware)
	authed.HandleFunc("/logout", b.logout).Methods(http.MethodPost)
	authed.HandleFunc("/me", b.me).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id:[0-9]+}", b.userGet).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id:[0-9]+}", b.userUpdate).Methods(http.MethodPatch)
	authed.HandleFunc("/users/{id:[0-9]+}", b.userDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/users/{id:[0-9]+}/avatar", b.userAvatarUpload).Methods(http.MethodPost)

	// the avatar image is loaded by img tags, which cannot set a header;
	// only this route accepts the token as a query parameter
	assets := router.NewRoute().Subrouter()
	assets.Use(b.auth.AssetMiddleware(sessionStore{store: b.store}))
	assets.Use(b.linkRequestLogMiddleware)
	assets.HandleFunc("/users/{id:[0-9]+}/avatar", b.userAvatarGet).Methods(http.MethodGet)

	authed.HandleFunc("/my/consumptions", b.consumptionList).Methods(http.MethodGet)
	authed.HandleFunc("/my/consumptions", b.consumptionCreate).Methods(http.MethodPost)
	authed.HandleFunc("/my/consumptions/import", b.consumptionImport).Methods(http.MethodPost)
	authed.HandleFunc("/my/consumptions/{id:[0-9]+}", b.consumptionGet).Methods(http.MethodGet)
	authed.HandleFunc("/my/consumptions/{id:[0-9]+}", b.consumptionUpdate).Methods(http.MethodPatch)
	authed.HandleFunc("/my/consumptions/{id:[0-9]+}", b.consumptionDelete).Methods(http.MethodDelete)

	authed.HandleFunc("/users/{userId:[0-9]+}/consumptions", b.consumptionList).Methods(http.MethodGet)
	authed.HandleFunc("/users/{userId:[0-9]+}/consumptions", b.consumptionCreate).Methods(http.MethodPost)
	authed.HandleFunc("/users/{userId:[0-9]+}/consumptions/{id:[0-9]+}", b.consumptionGet).Methods(http.MethodGet)
	authed.HandleFunc("/users/{userId:[0-9]+}/consumptions/{id:[0-9]+}", b.consumptionUpdate).Methods(http.MethodPatch)
	authed.HandleFunc("/users/{userId:[0-9]+}/consumptions/{id:[0-9]+}", b.consumptionDelete).Methods(http.MethodDelete)

	// external, IP restricted
	external := router.PathPrefix("/external").Subrouter()
	external.Use(access.IPAllowlist(cronAllowedIPs))
	external.HandleFunc("/crons/scheduler", b.cronScheduler).Methods(http.MethodGet)
}

// sessionStore adapts the model store to the access.SessionStore interface.
type sessionStore struct {
	store *model.Store
}

// Verify implements access.SessionStore. Disabled wins over expired so a
// logged-out session always reports as disabled.
func (s sessionStore) Verify(ctx context.Context, userID int64, token string) error {
	e, err := s.store.FindOne(ctx, model.UserTokenMeta, map[string]interface{}{
		"user_id": userID,
		"token":   token,
	})
	if err == model.ErrNotFound {
		return access.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	session := e.(*model.UserToken)
	if session.Disabled() {
		return access.ErrSessionDisabled
	}
	if session.Expired() {
		return access.ErrSessionExpired
	}
	return nil
}

// writeValidationError maps a validation failure onto the response taxonomy.
func writeValidationError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*validate.Error); ok {
		if verr.Missing {
			output.MissingParameter(w, verr.Field)
		} else {
			output.InvalidParameter(w, verr.Field)
		}
		return
	}
	output.ServerError(w, err.Error())
}

// serverError logs and reports an unexpected failure. Outside production
// the underlying message is included verbatim.
func (b *Backend) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Errorln("internal error:", err)
	if b.env == "production" {
		output.ServerError(w, "Internal server error.")
		return
	}
	output.ServerError(w, err.Error())
}

func (b *Backend) hashPassword(guid, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(guid+password+b.pepper), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *Backend) checkPassword(u *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(u.GUID+password+b.pepper)) == nil
}

func listOptions(res *validate.Result) model.FindOptions {
	return model.FindOptions{
		Take:    int(res.Int("take")),
		Skip:    int(res.Int("skip")),
		OrderBy: res.String("orderBy"),
	}
}
