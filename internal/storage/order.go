package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/dental-mall/internal/domain/models"
)

var (
	ErrOrderNotFound = fmt.Errorf("order %w", models.ErrNotFound)
	// ErrOrderNumberTaken — сработал уникальный индекс по номеру заказа
	ErrOrderNumberTaken = errors.New("order number already taken")
)

const orderNumberConstraint = "orders_order_number_key"

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderWithItems вставляет заказ и его позиции в рамках транзакции
	CreateOrderWithItems(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CountOrdersWithNumber нужен генератору номеров для проверки уникальности
	CountOrdersWithNumber(ctx context.Context, number string) (int, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderForUser возвращает заказ вместе с позициями, только если он принадлежит пользователю
	GetOrderForUser(ctx context.Context, userID, id int64) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя без позиций, новые первыми
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// LockOrderTx читает заказ с блокировкой строки
	LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id int64, upd models.OrderStatusUpdate) (*models.Order, error)
	UpdateInvoiceURL(ctx context.Context, id int64, url string) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, order_number, user_id, address_id, status, payment_status, payment_method,
	subtotal, discount, delivery_fee, total, notes, admin_notes, invoice_url, created_at, updated_at`

func scanOrder(scan func(dest ...any) error) (*models.Order, error) {
	o := &models.Order{}
	err := scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Total, &o.Notes, &o.AdminNotes, &o.InvoiceURL,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// CreateOrderWithItems вставляет заказ, затем позиции. Откат делает вызывающий
func (r *orderRepository) CreateOrderWithItems(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (order_number, user_id, address_id, status, payment_status, payment_method,
	                              subtotal, discount, delivery_fee, total, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		order.OrderNumber, order.UserID, order.AddressID, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Subtotal, order.Discount, order.DeliveryFee, order.Total, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, orderNumberConstraint) {
			return fmt.Errorf("%w: %s", ErrOrderNumberTaken, order.OrderNumber)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, variant_id, product_name, quantity, price)
	              VALUES ($1, $2, $3, $4, $5, $6)
	              RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx, itemQuery,
			item.OrderID, item.ProductID, nullInt64(item.VariantID), item.ProductName, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) CountOrdersWithNumber(ctx context.Context, number string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE order_number = $1", number).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id).Scan)
	if err != nil {
		return nil, err
	}
	if order.Items, err = r.getOrderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderForUser(ctx context.Context, userID, id int64) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND user_id = $2"
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, userID).Scan)
	if err != nil {
		return nil, err
	}
	if order.Items, err = r.getOrderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) getOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `SELECT id, order_id, product_id, variant_id, product_name, quantity, price
	          FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var variantID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.VariantID = int64Ptr(variantID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id).Scan)
}

// UpdateOrderStatusTx меняет только переданные поля, суммы заказа не трогает
func (r *orderRepository) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id int64, upd models.OrderStatusUpdate) (*models.Order, error) {
	query := `UPDATE orders
	          SET status = COALESCE($2, status),
	              payment_status = COALESCE($3, payment_status),
	              admin_notes = COALESCE($4, admin_notes),
	              updated_at = NOW()
	          WHERE id = $1
	          RETURNING ` + orderColumns
	order, err := scanOrder(tx.QueryRowContext(ctx, query, id, upd.Status, upd.PaymentStatus, upd.AdminNotes).Scan)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) UpdateInvoiceURL(ctx context.Context, id int64, url string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET invoice_url = $1, updated_at = NOW() WHERE id = $2", url, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice url: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
