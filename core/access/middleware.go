package access

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/output"
)

// Middleware returns the authentication middleware. It parses the bearer
// token, verifies the session behind it and puts the resulting identity into
// the request context. Requests without a valid identity fail closed.
func (a *TokenAuth) Middleware(sessions SessionStore) mux.MiddlewareFunc {
	return a.middleware(sessions, false)
}

// AssetMiddleware authenticates like Middleware but also accepts the token
// as a `token` URL query parameter. Only asset routes that browsers load
// directly, like the avatar image, get this fallback.
func (a *TokenAuth) AssetMiddleware(sessions SessionStore) mux.MiddlewareFunc {
	return a.middleware(sessions, true)
}

func (a *TokenAuth) middleware(sessions SessionStore, allowQueryToken bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" && allowQueryToken {
				raw = r.URL.Query().Get("token")
			}
			claims, err := a.Parse(raw)
			if err != nil {
				output.NotAuthorized(w)
				return
			}
			ctx := r.Context()
			if err := sessions.Verify(ctx, claims.UserID, claims.Token); err != nil {
				switch {
				case errors.Is(err, ErrSessionDisabled):
					output.NotAuthorized(w, "Token has been disabled.")
				case errors.Is(err, ErrSessionExpired):
					output.NotAuthorized(w, "Token has expired.")
				default:
					output.NotAuthorized(w)
				}
				return
			}
			identity := Identity{
				UserID:        claims.UserID,
				Token:         claims.Token,
				Env:           claims.Env,
				RemoteAddress: RemoteIP(r),
			}
			ctx = ContextWithIdentity(ctx, identity)
			ctx, rlog := logger.ContextWithLoggerIdentity(ctx, claims.Token)
			rlog.Debugln("authenticated user", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPAllowlist returns a middleware that only lets listed client addresses
// through. A single "*" entry allows everything.
func IPAllowlist(allowed []string) mux.MiddlewareFunc {
	allowedSet := make(map[string]bool, len(allowed))
	wildcard := false
	for _, ip := range allowed {
		if ip == "*" {
			wildcard = true
		}
		allowedSet[ip] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RemoteIP(r)
			if !wildcard && !allowedSet[ip] {
				logger.FromContext(r.Context()).Warnln("blocked request from", ip)
				output.NotAuthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
