package jwtmiddleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/dental-mall/internal/jwt-new/jwtmiddleware"
	"github.com/stretchr/testify/assert"
)

const testSecret = "testsecret"

// createTestToken создаёт JWT-токен с заданным subject и секретом.
func createTestToken(sub string, secret string, method jwt.SigningMethod) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(method, claims)
	return token.SignedString([]byte(secret))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "userID not found", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "%d", userID)
	})
}

func serve(authHeader string) *httptest.ResponseRecorder {
	handler := jwtmiddleware.NewJWTMiddleware(testSecret)(okHandler())
	req := httptest.NewRequest("GET", "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestJWTMiddleware_MissingAuthorization(t *testing.T) {
	rr := serve("")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "missing token"))
}

func TestJWTMiddleware_InvalidAuthorizationFormat(t *testing.T) {
	rr := serve("InvalidFormat")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token format"))
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	rr := serve("Bearer invalid.token.value")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token"))
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	tokenStr, err := createTestToken("123", "other", jwt.SigningMethodHS256)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+tokenStr).Code)
}

func TestJWTMiddleware_UnexpectedAlgorithm(t *testing.T) {
	tokenStr, err := createTestToken("123", testSecret, jwt.SigningMethodHS512)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+tokenStr).Code)
}

func TestJWTMiddleware_BadSubject(t *testing.T) {
	tokenStr, err := createTestToken("abc", testSecret, jwt.SigningMethodHS256)
	assert.NoError(t, err)
	rr := serve("Bearer " + tokenStr)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid user id")
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr, err := createTestToken("123", testSecret, jwt.SigningMethodHS256)
	assert.NoError(t, err)

	rr := serve("Bearer " + tokenStr)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "123", rr.Body.String())
}

func TestJWTMiddleware_EmptySecretPanics(t *testing.T) {
	assert.Panics(t, func() { jwtmiddleware.NewJWTMiddleware("") })
}

func TestFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), jwtmiddleware.UserIDKey, int64(456))
	userID, ok := jwtmiddleware.FromContext(ctx)
	assert.True(t, ok, "Expected to retrieve userID from context")
	assert.Equal(t, int64(456), userID, "Expected userID to match")
}
