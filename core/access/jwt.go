package access

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Token parsing errors.
var (
	ErrNoToken          = errors.New("access: no bearer token")
	ErrInvalidToken     = errors.New("access: invalid bearer token")
	ErrWrongEnvironment = errors.New("access: token issued for another environment")
)

// Claims is the payload of an auth token. The session token inside the
// claims is what gets checked against the session store, so revoking the
// session revokes every JWT minted for it.
type Claims struct {
	Env    string `json:"env"`
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
	jwt.RegisteredClaims
}

// TokenAuth signs and verifies auth tokens with a shared HMAC secret.
type TokenAuth struct {
	Secret []byte
	Env    string
}

// Sign mints a signed auth token for the given user session.
func (a *TokenAuth) Sign(userID int64, sessionToken string) (string, error) {
	claims := Claims{
		Env:    a.Env,
		UserID: userID,
		Token:  sessionToken,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// Parse verifies the signature of a raw token and checks that it was issued
// for this environment.
func (a *TokenAuth) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	// all three claims must be present, a partial token fails closed here
	// instead of relying on a zero value missing the session lookup
	if claims.Env == "" || claims.UserID == 0 || claims.Token == "" {
		return nil, ErrInvalidToken
	}
	if claims.Env != a.Env {
		return nil, ErrWrongEnvironment
	}
	return claims, nil
}
