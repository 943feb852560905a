package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/dental-mall/internal/service"
)

type CreateAddressRequest struct {
	Recipient   string `json:"recipient" validate:"max=200"`
	Line1       string `json:"line1" validate:"required,max=200"`
	Line2       string `json:"line2" validate:"max=200"`
	City        string `json:"city" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"max=20"`
	Phone       string `json:"phone" validate:"max=32"`
	MakeDefault bool   `json:"make_default"`
}

// ListAddressesHandler обрабатывает GET /api/addresses
func ListAddressesHandler(log *slog.Logger, addressService service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListAddressesHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		addresses, err := addressService.List(r.Context(), userID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, addresses)
	}
}

// CreateAddressHandler обрабатывает POST /api/addresses
func CreateAddressHandler(log *slog.Logger, addressService service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateAddressHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		var req CreateAddressRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		address, err := addressService.Create(r.Context(), userID, service.CreateAddressRequest(req))
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, address)
	}
}

// SetDefaultAddressHandler обрабатывает POST /api/addresses/{addressID}/default
func SetDefaultAddressHandler(log *slog.Logger, addressService service.AddressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.SetDefaultAddressHandler"))

		userID, ok := currentUser(logger, w, r)
		if !ok {
			return
		}
		addressID, ok := idParam(logger, w, r, "addressID")
		if !ok {
			return
		}
		address, err := addressService.SetDefault(r.Context(), userID, addressID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, address)
	}
}
