package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/storage"
)

type OrderService interface {
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
}

type orderService struct {
	log    *slog.Logger
	guard  *authz.Guard
	orders storage.OrderStorage
}

func NewOrderService(log *slog.Logger, guard *authz.Guard, orders storage.OrderStorage) OrderService {
	return &orderService{log: log, guard: guard, orders: orders}
}

// ListOrders возвращает заказы пользователя, новые первыми
func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.GetOrdersByUserID(ctx, user.ID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// GetOrder возвращает заказ с позициями. Чужой заказ неотличим от несуществующего
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrderForUser(ctx, user.ID, orderID)
	if err != nil {
		if !errors.Is(err, storage.ErrOrderNotFound) {
			s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}
