package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/dental-mall/internal/domain/models"
	security "github.com/linemk/dental-mall/internal/jwt-new"
	"github.com/linemk/dental-mall/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)

type AuthService struct {
	log       *slog.Logger
	userRepo  storage.UserStorage
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:       log,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Login осуществляет аутентификацию пользователя.
// Неизвестный email регистрируется как покупатель (CUSTOMER), пароль хэшируется через bcrypt.
// Для существующего пользователя пароль сравнивается с сохранённым хэшем.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		logger.Info("user not found, registering customer")
		passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash password", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		user, err = a.userRepo.CreateUser(ctx, &models.User{
			Email:    email,
			PassHash: passHash,
			Role:     models.RoleCustomer,
		})
		if err != nil {
			logger.Error("failed to create user", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to create user: %w", op, err)
		}
	case err != nil:
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	default:
		if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
			logger.Warn("invalid password")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
	}

	token, err := security.NewToken(ctx, user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID), slog.String("role", string(user.Role)))
	return token, nil
}
