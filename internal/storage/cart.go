package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/dental-mall/internal/domain/models"
)

var (
	ErrCartLineNotFound = fmt.Errorf("cart line %w", models.ErrNotFound)
	// ErrCartLocked — корзину сейчас оформляет параллельный запрос
	ErrCartLocked = errors.New("cart is locked by another checkout")
)

// CartStorage описывает методы для работы с корзиной.
// Все методы, принимающие lineID, фильтруют по владельцу: чужая строка неотличима от отсутствующей
type CartStorage interface {
	// ListCartLines возвращает строки корзины с данными товара и текущими ценами
	ListCartLines(ctx context.Context, userID int64) ([]*models.CartLineView, error)
	// LockCartLinesTx читает строки корзины внутри транзакции с блокировкой FOR UPDATE
	LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLineView, error)
	// UpsertCartLine добавляет строку или увеличивает количество у существующей
	UpsertCartLine(ctx context.Context, userID, productID int64, variantID *int64, quantity int) (*models.CartLine, error)
	UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error)
	DeleteCartLine(ctx context.Context, userID, lineID int64) error
	DeleteCartLines(ctx context.Context, userID int64) (int64, error)
	// DeleteCartLinesTx удаляет заблокированные строки в рамках транзакции оформления заказа.
	// Строки, добавленные параллельно после блокировки, остаются в корзине
	DeleteCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64, lineIDs []int64) (int64, error)
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

// цены варианта, если заданы, перекрывают цены товара
// cartViewQuery не видит строки снятых с продажи товаров: их нельзя ни показать, ни оформить
const cartViewQuery = `
	SELECT c.id, c.user_id, c.product_id, c.variant_id, c.quantity, c.created_at,
	       p.name, p.sku, COALESCE(v.name, ''),
	       COALESCE(v.price, p.price),
	       CASE WHEN v.price IS NOT NULL THEN v.sale_price ELSE p.sale_price END
	FROM cart_items c
	JOIN products p ON p.id = c.product_id
	LEFT JOIN product_variants v ON v.id = c.variant_id
	WHERE c.user_id = $1 AND p.is_active
	ORDER BY c.created_at, c.id`

const cartLineColumns = "id, user_id, product_id, variant_id, quantity, created_at"

func scanCartViews(rows *sql.Rows) ([]*models.CartLineView, error) {
	defer rows.Close()

	lines := make([]*models.CartLineView, 0)
	for rows.Next() {
		line := &models.CartLineView{}
		var variantID sql.NullInt64
		if err := rows.Scan(
			&line.ID, &line.UserID, &line.ProductID, &variantID, &line.Quantity, &line.CreatedAt,
			&line.ProductName, &line.SKU, &line.VariantName,
			&line.ListPrice, &line.SalePrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		line.VariantID = int64Ptr(variantID)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func scanCartLine(row *sql.Row) (*models.CartLine, error) {
	line := &models.CartLine{}
	var variantID sql.NullInt64
	if err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &variantID, &line.Quantity, &line.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, err
	}
	line.VariantID = int64Ptr(variantID)
	return line, nil
}

func (r *cartRepository) ListCartLines(ctx context.Context, userID int64) ([]*models.CartLineView, error) {
	rows, err := r.db.QueryContext(ctx, cartViewQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	return scanCartViews(rows)
}

func (r *cartRepository) LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLineView, error) {
	rows, err := tx.QueryContext(ctx, cartViewQuery+" FOR UPDATE OF c NOWAIT", userID)
	if err != nil {
		if pqErrorCode(err) == pqCodeLockNotAvailable {
			return nil, fmt.Errorf("%w: %w", ErrCartLocked, err)
		}
		return nil, fmt.Errorf("failed to lock cart lines: %w", err)
	}
	return scanCartViews(rows)
}

func (r *cartRepository) UpsertCartLine(ctx context.Context, userID, productID int64, variantID *int64, quantity int) (*models.CartLine, error) {
	query := `INSERT INTO cart_items (user_id, product_id, variant_id, quantity, created_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          ON CONFLICT (user_id, product_id, (COALESCE(variant_id, 0)))
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	          RETURNING ` + cartLineColumns
	row := r.db.QueryRowContext(ctx, query, userID, productID, nullInt64(variantID), quantity)
	line, err := scanCartLine(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return line, nil
}

func (r *cartRepository) UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	query := `UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3 RETURNING ` + cartLineColumns
	row := r.db.QueryRowContext(ctx, query, quantity, lineID, userID)
	return scanCartLine(row)
}

func (r *cartRepository) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", lineID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (r *cartRepository) DeleteCartLines(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return res.RowsAffected()
}

func (r *cartRepository) DeleteCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64, lineIDs []int64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)", userID, pq.Array(lineIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return res.RowsAffected()
}
