// Package access carries the authenticated identity of a request and the
// middleware that establishes it.
package access

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Identity describes who is making the request. It travels in the request
// context once the bearer token has been verified.
type Identity struct {
	UserID        int64
	Token         string
	Env           string
	RemoteAddress string
	RequestLogID  int64
}

type contextKeyIdentityType struct{}

var contextKeyIdentity = &contextKeyIdentityType{}

// ContextWithIdentity returns a new context carrying the identity.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext returns the identity from the context, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}

// Session verification errors, ordered by precedence: a disabled session
// reports disabled even when it is also expired.
var (
	ErrSessionNotFound = errors.New("access: session not found")
	ErrSessionDisabled = errors.New("access: session disabled")
	ErrSessionExpired  = errors.New("access: session expired")
)

// SessionStore verifies that a bearer token still belongs to a live session.
type SessionStore interface {
	// Verify returns nil when the session exists and is usable, otherwise
	// one of ErrSessionNotFound, ErrSessionDisabled or ErrSessionExpired.
	Verify(ctx context.Context, userID int64, token string) error
}

// RemoteIP extracts the client address of a request, preferring the first
// X-Forwarded-For entry over the socket peer.
func RemoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerToken extracts the bearer token from the Authorization header. It
// returns the empty string if the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
