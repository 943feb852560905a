package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/dental-mall/internal/service"
)

// AuthRequest — логин по email и паролю
type AuthRequest struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

// AuthHandler выдает JWT. Неизвестный email регистрируется
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		token, err := authService.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, AuthResponse{Token: token})
	}
}
