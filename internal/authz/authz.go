// Package authz сопоставляет аутентифицированного пользователя с записью в БД
// и проверяет роли. Все ролевые проверки сервисов идут через Guard.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/storage"
)

type Guard struct {
	log   *slog.Logger
	users storage.UserStorage
}

func NewGuard(log *slog.Logger, users storage.UserStorage) *Guard {
	return &Guard{log: log, users: users}
}

// Resolve возвращает пользователя по идентификатору из токена.
// Удаленный или неизвестный пользователь считается неаутентифицированным
func (g *Guard) Resolve(ctx context.Context, userID int64) (*models.User, error) {
	const op = "authz.Guard.Resolve"

	if userID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			g.log.Warn("token subject has no user record", slog.String("op", op), slog.Int64("userID", userID))
			return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return user, nil
}

// RequireRole разрешает доступ, если роль пользователя входит в roles
func (g *Guard) RequireRole(ctx context.Context, userID int64, roles ...models.Role) (*models.User, error) {
	const op = "authz.Guard.RequireRole"

	user, err := g.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasRole(roles...) {
		g.log.Warn("role check failed",
			slog.String("op", op),
			slog.Int64("userID", userID),
			slog.String("role", string(user.Role)),
		)
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	return user, nil
}
