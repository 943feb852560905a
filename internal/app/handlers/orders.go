package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/service"
)

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListOrdersHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		orders, err := orderService.ListOrders(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, orders)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{orderID}. Чужой заказ отдается как 404
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetOrderHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		orderID, ok := idParam(logger, w, r, "orderID")
		if !ok {
			return
		}
		order, err := orderService.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

type UpdateOrderStatusRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED PROCESSING SHIPPED DELIVERED CANCELLED"`
	PaymentStatus *string `json:"payment_status" validate:"omitempty,oneof=PENDING INVOICE_SENT PAID FAILED REFUNDED"`
	AdminNotes    *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

// AdminGetOrderHandler обрабатывает GET /api/admin/orders/{orderID}
func AdminGetOrderHandler(log *slog.Logger, adminService service.OrderAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AdminGetOrderHandler"))

		actorID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		orderID, ok := idParam(logger, w, r, "orderID")
		if !ok {
			return
		}
		order, err := adminService.GetOrder(r.Context(), actorID, orderID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

// AdminUpdateOrderStatusHandler обрабатывает PATCH /api/admin/orders/{orderID}/status
func AdminUpdateOrderStatusHandler(log *slog.Logger, adminService service.OrderAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AdminUpdateOrderStatusHandler"))

		actorID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		orderID, ok := idParam(logger, w, r, "orderID")
		if !ok {
			return
		}
		var req UpdateOrderStatusRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		upd := service.UpdateOrderStatusRequest{AdminNotes: req.AdminNotes}
		if req.Status != nil {
			s := models.OrderStatus(*req.Status)
			upd.Status = &s
		}
		if req.PaymentStatus != nil {
			p := models.PaymentStatus(*req.PaymentStatus)
			upd.PaymentStatus = &p
		}

		order, err := adminService.UpdateOrderStatus(r.Context(), actorID, orderID, upd)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}
