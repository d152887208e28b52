// Package wsauth is an optional pluggable bearer-token gate for WebSocket
// endpoints, generalizing the teacher's ws.extractAndValidateToken (which
// was hardwired to its account/auth service) into a standalone validator
// interface any endpoint can opt into or skip.
package wsauth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks a bearer token and returns the subject it identifies.
type Validator interface {
	Validate(token string) (subject string, err error)
}

// NoAuth is the default: every request is accepted with an empty subject.
// Most of this system's WebSocket endpoints are read-only market data with
// no per-subscriber authorization requirement, so NoAuth is the common case
// and a real Validator is opt-in.
type NoAuth struct{}

func (NoAuth) Validate(string) (string, error) { return "", nil }

// JWTValidator validates HMAC-signed JWTs, matching the teacher's
// golang-jwt/jwt/v5 usage.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator builds a validator keyed on secret.
func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{secret: secret}
}

type claims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// Validate parses and verifies token, returning its subject claim.
func (v *JWTValidator) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	return c.Subject, nil
}

// ExtractToken pulls a bearer token from the "token" query parameter first
// (the common WebSocket-client convenience, since browsers can't set
// headers on the upgrade request), falling back to the Authorization
// header.
func ExtractToken(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], nil
		}
	}
	return "", fmt.Errorf("no bearer token provided")
}

// Gate wraps an http.HandlerFunc (typically a Hub.ServeWs call) with token
// validation. A failed validation returns 401 and never reaches next.
func Gate(v Validator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractToken(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := v.Validate(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
