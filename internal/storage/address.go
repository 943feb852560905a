package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/dental-mall/internal/domain/models"
)

var ErrAddressNotFound = fmt.Errorf("address %w", models.ErrNotFound)

// AddressStorage описывает методы для работы с адресами пользователя
type AddressStorage interface {
	ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error)
	// GetAddressForUser возвращает адрес только если он принадлежит пользователю
	GetAddressForUser(ctx context.Context, userID, addressID int64) (*models.Address, error)
	CountAddressesTx(ctx context.Context, tx *sql.Tx, userID int64) (int, error)
	CreateAddressTx(ctx context.Context, tx *sql.Tx, address *models.Address) error
	// ClearDefaultTx снимает флаг is_default со всех адресов пользователя
	ClearDefaultTx(ctx context.Context, tx *sql.Tx, userID int64) error
	SetDefaultTx(ctx context.Context, tx *sql.Tx, userID, addressID int64) error
}

type addressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) AddressStorage {
	return &addressRepository{db: db}
}

const addressColumns = "id, user_id, recipient, line1, line2, city, postal_code, phone, is_default, created_at"

func scanAddress(scan func(dest ...any) error) (*models.Address, error) {
	a := &models.Address{}
	if err := scan(&a.ID, &a.UserID, &a.Recipient, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Phone, &a.IsDefault, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *addressRepository) ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error) {
	query := "SELECT " + addressColumns + " FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, id"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]*models.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *addressRepository) GetAddressForUser(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	query := "SELECT " + addressColumns + " FROM addresses WHERE id = $1 AND user_id = $2"
	a, err := scanAddress(r.db.QueryRowContext(ctx, query, addressID, userID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *addressRepository) CountAddressesTx(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM addresses WHERE user_id = $1", userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return count, nil
}

func (r *addressRepository) CreateAddressTx(ctx context.Context, tx *sql.Tx, a *models.Address) error {
	query := `INSERT INTO addresses (user_id, recipient, line1, line2, city, postal_code, phone, is_default, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		a.UserID, a.Recipient, a.Line1, a.Line2, a.City, a.PostalCode, a.Phone, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (r *addressRepository) ClearDefaultTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default", userID)
	if err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func (r *addressRepository) SetDefaultTx(ctx context.Context, tx *sql.Tx, userID, addressID int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = TRUE WHERE id = $1 AND user_id = $2", addressID, userID)
	if err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAddressNotFound
	}
	return nil
}
