package security

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/dental-mall/internal/domain/models"
)

var ErrEmptySecret = errors.New("jwt secret is empty")

// NewToken выпускает HS256-токен. sub — идентификатор пользователя, role — для информации клиенту,
// права на сервере все равно проверяются по записи в БД
func NewToken(_ context.Context, user *models.User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"role":  string(user.Role),
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
