// Package service содержит бизнес-логику маркетплейса: корзину, оформление заказа,
// адреса и работу администратора со статусами.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/linemk/dental-mall/internal/domain/models"
)

// Notifier выполняет побочные эффекты после коммита. Ошибки внутри не возвращаются
type Notifier interface {
	OrderPlaced(ctx context.Context, user *models.User, order *models.Order, address *models.Address) string
	StatusChanged(ctx context.Context, user *models.User, order *models.Order, prevStatus models.OrderStatus, prevPayment models.PaymentStatus)
}

// CheckoutRecorder считает результаты оформления заказа
type CheckoutRecorder interface {
	CheckoutResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) CheckoutResult(string) {}

// rollback откатывает транзакцию; ошибку отката только логируем
func rollback(logger *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("transaction rollback failed", slog.Any("error", err))
	}
}
