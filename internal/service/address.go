package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/storage"
)

type CreateAddressRequest struct {
	Recipient   string
	Line1       string
	Line2       string
	City        string
	PostalCode  string
	Phone       string
	MakeDefault bool
}

type AddressService interface {
	List(ctx context.Context, userID int64) ([]*models.Address, error)
	Create(ctx context.Context, userID int64, req CreateAddressRequest) (*models.Address, error)
	SetDefault(ctx context.Context, userID, addressID int64) (*models.Address, error)
}

type addressService struct {
	log       *slog.Logger
	db        *sql.DB
	guard     *authz.Guard
	addresses storage.AddressStorage
}

func NewAddressService(log *slog.Logger, db *sql.DB, guard *authz.Guard, addresses storage.AddressStorage) AddressService {
	return &addressService{log: log, db: db, guard: guard, addresses: addresses}
}

func (s *addressService) List(ctx context.Context, userID int64) ([]*models.Address, error) {
	const op = "service.AddressService.List"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	addresses, err := s.addresses.ListAddresses(ctx, user.ID)
	if err != nil {
		s.log.Error("failed to list addresses", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return addresses, nil
}

// Create сохраняет адрес. Первый адрес пользователя всегда становится адресом по умолчанию
func (s *addressService) Create(ctx context.Context, userID int64, req CreateAddressRequest) (*models.Address, error) {
	const op = "service.AddressService.Create"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if strings.TrimSpace(req.Line1) == "" || strings.TrimSpace(req.City) == "" {
		return nil, fmt.Errorf("%s: line1 and city are required: %w", op, models.ErrValidation)
	}
	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	count, err := s.addresses.CountAddressesTx(ctx, tx, user.ID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to count addresses", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	address := &models.Address{
		UserID:     user.ID,
		Recipient:  req.Recipient,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
		IsDefault:  count == 0 || req.MakeDefault,
	}
	if address.IsDefault && count > 0 {
		if err := s.addresses.ClearDefaultTx(ctx, tx, user.ID); err != nil {
			rollback(logger, tx)
			logger.Error("failed to clear default address", slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := s.addresses.CreateAddressTx(ctx, tx, address); err != nil {
		rollback(logger, tx)
		logger.Error("failed to create address", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	logger.Info("address created", slog.Int64("addressID", address.ID), slog.Bool("default", address.IsDefault))
	return address, nil
}

// SetDefault делает адрес адресом по умолчанию, снимая флаг с предыдущего
func (s *addressService) SetDefault(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	const op = "service.AddressService.SetDefault"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("addressID", addressID))

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	address, err := s.addresses.GetAddressForUser(ctx, user.ID, addressID)
	if err != nil {
		if !errors.Is(err, storage.ErrAddressNotFound) {
			logger.Error("failed to get address", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if address.IsDefault {
		return address, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	if err := s.addresses.ClearDefaultTx(ctx, tx, user.ID); err != nil {
		rollback(logger, tx)
		logger.Error("failed to clear default address", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.addresses.SetDefaultTx(ctx, tx, user.ID, addressID); err != nil {
		rollback(logger, tx)
		if !errors.Is(err, storage.ErrAddressNotFound) {
			logger.Error("failed to set default address", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	address.IsDefault = true
	return address, nil
}
