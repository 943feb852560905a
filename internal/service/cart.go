package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/pricing"
	"github.com/linemk/dental-mall/internal/storage"
	"github.com/shopspring/decimal"
)

// CartItem — строка корзины с рассчитанной ценой
type CartItem struct {
	models.CartLineView
	pricing.LineQuote
}

// Cart — корзина пользователя с предварительным расчетом. Итог без доставки
type Cart struct {
	Items    []CartItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type AddItemRequest struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*Cart, error)
	AddItem(ctx context.Context, userID int64, req AddItemRequest) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, userID, lineID int64) error
	Clear(ctx context.Context, userID int64) error
}

type cartService struct {
	log      *slog.Logger
	guard    *authz.Guard
	carts    storage.CartStorage
	products storage.ProductStorage
}

func NewCartService(log *slog.Logger, guard *authz.Guard, carts storage.CartStorage, products storage.ProductStorage) CartService {
	return &cartService{
		log:      log,
		guard:    guard,
		carts:    carts,
		products: products,
	}
}

func pricingLines(lines []*models.CartLineView) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Line{ListPrice: l.ListPrice, SalePrice: l.SalePrice, Quantity: l.Quantity})
	}
	return out
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	const op = "service.CartService.GetCart"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.carts.ListCartLines(ctx, user.ID)
	if err != nil {
		s.log.Error("failed to list cart lines", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	quote := pricing.Calculate(pricingLines(lines))
	cart := &Cart{
		Items:    make([]CartItem, 0, len(lines)),
		Subtotal: quote.Subtotal,
		Discount: quote.Discount,
		Total:    quote.Total,
	}
	for i, l := range lines {
		cart.Items = append(cart.Items, CartItem{CartLineView: *l, LineQuote: quote.Lines[i]})
	}
	return cart, nil
}

// AddItem добавляет товар в корзину. Повторное добавление той же пары (товар, вариант)
// увеличивает количество в существующей строке
func (s *cartService) AddItem(ctx context.Context, userID int64, req AddItemRequest) (*models.CartLine, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", req.ProductID))

	if req.Quantity < 1 {
		return nil, fmt.Errorf("%s: quantity must be at least 1: %w", op, models.ErrValidation)
	}
	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.GetProduct(ctx, req.ProductID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.Error("failed to get product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.VariantID != nil {
		if _, err := s.products.GetVariant(ctx, req.ProductID, *req.VariantID); err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				logger.Error("failed to get variant", slog.Any("error", err))
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	line, err := s.carts.UpsertCartLine(ctx, user.ID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		logger.Error("failed to add cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("cart line upserted", slog.Int64("lineID", line.ID), slog.Int("quantity", line.Quantity))
	return line, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	const op = "service.CartService.UpdateQuantity"

	if quantity < 1 {
		return nil, fmt.Errorf("%s: quantity must be at least 1: %w", op, models.ErrValidation)
	}
	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, err := s.carts.UpdateCartLineQuantity(ctx, user.ID, lineID, quantity)
	if err != nil {
		if !errors.Is(err, storage.ErrCartLineNotFound) {
			s.log.Error("failed to update cart line", slog.String("op", op), slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return line, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, lineID int64) error {
	const op = "service.CartService.RemoveItem"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.carts.DeleteCartLine(ctx, user.ID, lineID); err != nil {
		if !errors.Is(err, storage.ErrCartLineNotFound) {
			s.log.Error("failed to delete cart line", slog.String("op", op), slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID int64) error {
	const op = "service.CartService.Clear"

	user, err := s.guard.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	removed, err := s.carts.DeleteCartLines(ctx, user.ID)
	if err != nil {
		s.log.Error("failed to clear cart", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("cart cleared", slog.String("op", op), slog.Int64("userID", user.ID), slog.Int64("removed", removed))
	return nil
}
