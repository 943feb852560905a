package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/lib/metrics"
	"github.com/linemk/dental-mall/internal/ordernumber"
	"github.com/linemk/dental-mall/internal/pricing"
	"github.com/linemk/dental-mall/internal/storage"
	"github.com/shopspring/decimal"
)

// сколько раз повторяем транзакцию, если номер заказа занят параллельной вставкой
const maxCommitAttempts = 3

type PlaceOrderRequest struct {
	AddressID     int64
	PaymentMethod models.PaymentMethod
	Notes         *string
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*models.Order, error)
}

type checkoutService struct {
	log       *slog.Logger
	db        *sql.DB
	guard     *authz.Guard
	carts     storage.CartStorage
	addresses storage.AddressStorage
	orders    storage.OrderStorage
	numbers   *ordernumber.Generator
	notifier  Notifier
	recorder  CheckoutRecorder
}

func NewCheckoutService(
	log *slog.Logger,
	db *sql.DB,
	guard *authz.Guard,
	carts storage.CartStorage,
	addresses storage.AddressStorage,
	orders storage.OrderStorage,
	numbers *ordernumber.Generator,
	notifier Notifier,
	recorder CheckoutRecorder,
) CheckoutService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &checkoutService{
		log:       log,
		db:        db,
		guard:     guard,
		carts:     carts,
		addresses: addresses,
		orders:    orders,
		numbers:   numbers,
		notifier:  notifier,
		recorder:  recorder,
	}
}

// PlaceOrder превращает корзину в заказ. Заказ, позиции и очистка корзины пишутся
// одной транзакцией. Счет, письмо и событие выполняются после коммита и на результат не влияют
func (s *checkoutService) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*models.Order, error) {
	const op = "service.CheckoutService.PlaceOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("addressID", req.AddressID))
	logger.Info("starting checkout")

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	address, err := s.addresses.GetAddressForUser(ctx, user.ID, req.AddressID)
	if err != nil {
		if errors.Is(err, storage.ErrAddressNotFound) {
			logger.Warn("address does not belong to user")
			s.recorder.CheckoutResult(metrics.CheckoutInvalidAddress)
			return nil, fmt.Errorf("%s: address %d: %w", op, req.AddressID, models.ErrInvalidAddress)
		}
		logger.Error("failed to get address", slog.Any("error", err))
		s.recorder.CheckoutResult(metrics.CheckoutError)
		return nil, fmt.Errorf("%s: failed to get address: %w", op, err)
	}

	if !req.PaymentMethod.Supported() {
		return nil, fmt.Errorf("%s: unsupported payment method %q: %w", op, req.PaymentMethod, models.ErrValidation)
	}

	var order *models.Order
	for attempt := 1; ; attempt++ {
		order, err = s.placeOnce(ctx, logger, user, address, req)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrOrderNumberTaken) {
			s.recorder.CheckoutResult(checkoutResult(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Warn("order number taken at insert, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
		if attempt == maxCommitAttempts {
			s.recorder.CheckoutResult(metrics.CheckoutExhausted)
			return nil, fmt.Errorf("%s: order number taken %d times: %w", op, attempt, models.ErrGenerationExhausted)
		}
	}

	logger.Info("order committed", slog.String("orderNumber", order.OrderNumber), slog.String("total", order.Total.StringFixed(2)))
	s.recorder.CheckoutResult(metrics.CheckoutSuccess)

	s.notifier.OrderPlaced(ctx, user, order, address)
	return order, nil
}

// placeOnce выполняет одну транзакцию оформления. Любая ошибка откатывает все изменения
func (s *checkoutService) placeOnce(ctx context.Context, logger *slog.Logger, user *models.User, address *models.Address, req PlaceOrderRequest) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	lines, err := s.carts.LockCartLinesTx(ctx, tx, user.ID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrCartLocked) {
			logger.Warn("cart is being checked out concurrently")
		} else {
			logger.Error("failed to lock cart", slog.Any("error", err))
		}
		return nil, err
	}
	if len(lines) == 0 {
		rollback(logger, tx)
		logger.Warn("cart is empty")
		return nil, models.ErrEmptyCart
	}

	quote := pricing.Calculate(pricingLines(lines))
	deliveryFee := decimal.Zero

	number, err := s.numbers.Generate(ctx, s.orders)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to generate order number", slog.Any("error", err))
		return nil, err
	}

	order := &models.Order{
		OrderNumber:   number,
		UserID:        user.ID,
		AddressID:     address.ID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		DeliveryFee:   deliveryFee,
		Total:         quote.Total.Add(deliveryFee),
		Notes:         req.Notes,
		Items:         make([]models.OrderItem, 0, len(lines)),
	}
	lineIDs := make([]int64, 0, len(lines))
	for i, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.DisplayName(),
			Quantity:    l.Quantity,
			Price:       quote.Lines[i].UnitPrice,
		})
		lineIDs = append(lineIDs, l.ID)
	}

	if err := s.orders.CreateOrderWithItems(ctx, tx, order); err != nil {
		rollback(logger, tx)
		if !errors.Is(err, storage.ErrOrderNumberTaken) {
			logger.Error("failed to create order", slog.Any("error", err))
		}
		return nil, err
	}

	if _, err := s.carts.DeleteCartLinesTx(ctx, tx, user.ID, lineIDs); err != nil {
		rollback(logger, tx)
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return order, nil
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		return metrics.CheckoutEmptyCart
	case errors.Is(err, storage.ErrCartLocked):
		return metrics.CheckoutCartLocked
	case errors.Is(err, models.ErrGenerationExhausted):
		return metrics.CheckoutExhausted
	default:
		return metrics.CheckoutError
	}
}
