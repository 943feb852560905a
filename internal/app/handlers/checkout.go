package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/service"
)

type CheckoutRequest struct {
	AddressID     int64   `json:"address_id" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"omitempty,oneof=INVOICE"`
	Notes         *string `json:"notes" validate:"omitempty,max=1000"`
}

// CheckoutHandler обрабатывает POST /api/checkout и возвращает созданный заказ
func CheckoutHandler(log *slog.Logger, checkoutService service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CheckoutHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		var req CheckoutRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}
		method := models.PaymentMethod(req.PaymentMethod)
		if method == "" {
			method = models.PaymentMethodInvoice
		}

		order, err := checkoutService.PlaceOrder(r.Context(), userID, service.PlaceOrderRequest{
			AddressID:     req.AddressID,
			PaymentMethod: method,
			Notes:         req.Notes,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, order)
	}
}
