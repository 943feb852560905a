package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/dental-mall/internal/storage"
)

var validate = validator.New()

// ErrorResponse — тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

// statusFor сопоставляет доменные ошибки HTTP-кодам. Порядок проверок важен:
// ErrInvalidAddress оборачивает ErrNotFound, ErrInvalidTransition — ErrValidation
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrCartLocked):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrEmptyCart):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error, status int) string {
	switch {
	case status == http.StatusInternalServerError:
		return "internal server error"
	case errors.Is(err, models.ErrInvalidAddress):
		return models.ErrInvalidAddress.Error()
	case errors.Is(err, models.ErrInvalidTransition):
		return models.ErrInvalidTransition.Error()
	case errors.Is(err, models.ErrEmptyCart):
		return models.ErrEmptyCart.Error()
	case errors.Is(err, storage.ErrCartLocked):
		return storage.ErrCartLocked.Error()
	case errors.Is(err, models.ErrValidation):
		return models.ErrValidation.Error()
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "not found"
	}
	return http.StatusText(status)
}

// writeError пишет ответ с ошибкой. Внутренние ошибки логируются, детали клиенту не уходят
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(log, w, status, ErrorResponse{Error: errorMessage(err, status)})
}

func badRequest(log *slog.Logger, w http.ResponseWriter, msg string, err error) {
	log.Warn("invalid request", slog.String("reason", msg), slog.Any("error", err))
	writeJSON(log, w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

// decodeAndValidate читает JSON-тело и проверяет теги validate
func decodeAndValidate(log *slog.Logger, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(log, w, "invalid request", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		badRequest(log, w, "validation error", err)
		return false
	}
	return true
}

// currentUser достает userID, который положил JWT middleware
func currentUser(log *slog.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		log.Error("userID not found in context")
		writeJSON(log, w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, false
	}
	return userID, true
}

func idParam(log *slog.Logger, w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(log, w, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
