package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/storage"
)

// UpdateOrderStatusRequest — частичное изменение: nil-поля остаются как есть
type UpdateOrderStatusRequest struct {
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
	AdminNotes    *string
}

type OrderAdminService interface {
	GetOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, actorID, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error)
}

type orderAdminService struct {
	log      *slog.Logger
	db       *sql.DB
	guard    *authz.Guard
	users    storage.UserStorage
	orders   storage.OrderStorage
	notifier Notifier
}

func NewOrderAdminService(log *slog.Logger, db *sql.DB, guard *authz.Guard, users storage.UserStorage, orders storage.OrderStorage, notifier Notifier) OrderAdminService {
	return &orderAdminService{
		log:      log,
		db:       db,
		guard:    guard,
		users:    users,
		orders:   orders,
		notifier: notifier,
	}
}

func (s *orderAdminService) GetOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	const op = "service.OrderAdminService.GetOrder"

	if _, err := s.guard.RequireRole(ctx, actorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, storage.ErrOrderNotFound) {
			s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (r UpdateOrderStatusRequest) update() models.OrderStatusUpdate {
	return models.OrderStatusUpdate{Status: r.Status, PaymentStatus: r.PaymentStatus, AdminNotes: r.AdminNotes}
}

func validateUpdate(req UpdateOrderStatusRequest) error {
	if req.update().Empty() {
		return fmt.Errorf("nothing to update: %w", models.ErrValidation)
	}
	if req.Status != nil && !req.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", *req.Status, models.ErrValidation)
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return fmt.Errorf("unknown payment status %q: %w", *req.PaymentStatus, models.ErrValidation)
	}
	return nil
}

// UpdateOrderStatus меняет статус, статус оплаты и заметки администратора.
// Суммы и позиции заказа не меняются. Переходы проверяются по машинам состояний
func (s *orderAdminService) UpdateOrderStatus(ctx context.Context, actorID, orderID int64, req UpdateOrderStatusRequest) (*models.Order, error) {
	const op = "service.OrderAdminService.UpdateOrderStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actorID), slog.Int64("orderID", orderID))

	if _, err := s.guard.RequireRole(ctx, actorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateUpdate(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	current, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		rollback(logger, tx)
		if !errors.Is(err, storage.ErrOrderNotFound) {
			logger.Error("failed to load order", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Status != nil && !current.Status.CanTransitionTo(*req.Status) {
		rollback(logger, tx)
		logger.Warn("rejected status transition", slog.String("from", string(current.Status)), slog.String("to", string(*req.Status)))
		return nil, fmt.Errorf("%s: status %s -> %s: %w", op, current.Status, *req.Status, models.ErrInvalidTransition)
	}
	if req.PaymentStatus != nil && !current.PaymentStatus.CanTransitionTo(*req.PaymentStatus) {
		rollback(logger, tx)
		logger.Warn("rejected payment transition", slog.String("from", string(current.PaymentStatus)), slog.String("to", string(*req.PaymentStatus)))
		return nil, fmt.Errorf("%s: payment status %s -> %s: %w", op, current.PaymentStatus, *req.PaymentStatus, models.ErrInvalidTransition)
	}

	updated, err := s.orders.UpdateOrderStatusTx(ctx, tx, orderID, req.update())
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to update order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order updated",
		slog.String("status", string(updated.Status)),
		slog.String("paymentStatus", string(updated.PaymentStatus)),
	)

	if full, err := s.orders.GetOrderByID(ctx, orderID); err == nil {
		updated = full
	} else {
		logger.Warn("failed to reload order items", slog.Any("error", err))
	}

	if updated.Status != current.Status || updated.PaymentStatus != current.PaymentStatus {
		customer, err := s.users.GetUserByID(ctx, updated.UserID)
		if err != nil {
			logger.Warn("failed to load customer for notification", slog.Any("error", err))
		}
		s.notifier.StatusChanged(ctx, customer, updated, current.Status, current.PaymentStatus)
	}
	return updated, nil
}
