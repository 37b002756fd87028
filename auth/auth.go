// Package auth provides the bearer-token validation capability consumed by
// the WebSocket and status endpoints. Token issuance lives in the identity
// system, not here.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when no bearer token accompanies a request
var ErrMissingToken = errors.New("missing bearer token")

// Claims carried by syncbridge access tokens
type Claims struct {
	ClientType string `json:"clientType,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks bearer tokens. A nil Validator (no secret configured)
// accepts everything; the service then runs in anonymous mode.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator. Returns nil when secret is empty.
func NewValidator(secret string) *Validator {
	if secret == "" {
		return nil
	}
	return &Validator{secret: []byte(secret)}
}

// Validate parses and verifies a token string
func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	if v == nil {
		return &Claims{}, nil
	}
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateRequest extracts and validates the bearer token from an HTTP
// request, checking the Authorization header first and falling back to the
// access_token query parameter (browsers cannot set WebSocket headers).
func (v *Validator) ValidateRequest(r *http.Request) (*Claims, error) {
	if v == nil {
		return &Claims{}, nil
	}

	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else if q := r.URL.Query().Get("access_token"); q != "" {
		token = q
	}

	return v.Validate(token)
}

// Middleware rejects requests without a valid bearer token
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := v.ValidateRequest(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
