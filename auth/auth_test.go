package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateAcceptsSignedToken(t *testing.T) {
	v := NewValidator("test-secret")
	token := signToken(t, "test-secret", &Claims{
		ClientType: "flutter-app",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "flutter-app", claims.ClientType)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewValidator("test-secret")
	token := signToken(t, "other-secret", &Claims{})

	_, err := v.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := NewValidator("test-secret")
	token := signToken(t, "test-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Validate(token)
	assert.Error(t, err)
}

func TestNilValidatorAcceptsEverything(t *testing.T) {
	v := NewValidator("")
	require.Nil(t, v)

	claims, err := v.Validate("")
	require.NoError(t, err)
	assert.NotNil(t, claims)
}

func TestValidateRequestQueryFallback(t *testing.T) {
	v := NewValidator("test-secret")
	token := signToken(t, "test-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	r := httptest.NewRequest("GET", "/ws?access_token="+token, nil)
	_, err := v.ValidateRequest(r)
	assert.NoError(t, err)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	v := NewValidator("test-secret")
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
