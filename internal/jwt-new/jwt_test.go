package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/dental-mall/internal/domain/models"
	security "github.com/linemk/dental-mall/internal/jwt-new"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	user := &models.User{ID: 12, Email: "admin@example.com", Role: models.RoleAdmin}
	tokenStr, err := security.NewToken(context.Background(), user, "secret", time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "12", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}

func TestNewToken_EmptySecret(t *testing.T) {
	_, err := security.NewToken(context.Background(), &models.User{ID: 1}, "", time.Hour)
	assert.ErrorIs(t, err, security.ErrEmptySecret)
}
