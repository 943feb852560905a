package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/dental-mall/internal/service"
)

type AddCartItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id" validate:"omitempty,gt=0"`
	// без quantity добавляется одна штука
	Quantity *int `json:"quantity" validate:"omitempty,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// GetCartHandler обрабатывает GET /api/cart
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetCartHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		cart, err := cartService.GetCart(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, cart)
	}
}

// AddCartItemHandler обрабатывает POST /api/cart/items
func AddCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddCartItemHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		var req AddCartItemRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		line, err := cartService.AddItem(r.Context(), userID, service.AddItemRequest{
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  quantity,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, line)
	}
}

// UpdateCartItemHandler обрабатывает PATCH /api/cart/items/{lineID}
func UpdateCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateCartItemHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		lineID, ok := idParam(logger, w, r, "lineID")
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		line, err := cartService.UpdateQuantity(r.Context(), userID, lineID, req.Quantity)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, line)
	}
}

// RemoveCartItemHandler обрабатывает DELETE /api/cart/items/{lineID}
func RemoveCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.RemoveCartItemHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		lineID, ok := idParam(logger, w, r, "lineID")
		if !ok {
			return
		}
		if err := cartService.RemoveItem(r.Context(), userID, lineID); err != nil {
			writeError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearCartHandler обрабатывает DELETE /api/cart
func ClearCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ClearCartHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		if err := cartService.Clear(r.Context(), userID); err != nil {
			writeError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
