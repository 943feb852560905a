package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/linemk/dental-mall/internal/jwt-new/jwtmiddleware"
)

const (
	Header       = "Idempotency-Key"
	ReplayHeader = "X-Idempotent-Replay"
)

// Key возвращает ключ идемпотентности из заголовка запроса
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Middleware повторно отдает сохраненный ответ для уже выполненного ключа и возвращает 409,
// пока запрос с тем же ключом выполняется. Ключ привязан к пользователю.
// Запросы без заголовка проходят без проверки. Сохраняются только успешные (2xx) ответы,
// после ошибки ключ освобождается и клиент может повторить запрос
func Middleware(log *slog.Logger, store Store, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "idempotency.Middleware"
			logger := log.With(slog.String("op", op))

			key := Key(r)
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				respondError(w, http.StatusBadRequest, "unable to read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			userID, _ := jwtmiddleware.FromContext(r.Context())
			identity := strconv.FormatInt(userID, 10)
			scoped := identity + ":" + key
			fingerprint := requestFingerprint(r, body, identity)

			reservation, err := store.Reserve(r.Context(), scoped, fingerprint, ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					respondError(w, http.StatusConflict, "idempotency key already used for a different request")
					return
				}
				logger.Error("idempotency store failed", slog.Any("error", err))
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			switch reservation.State {
			case ReservationStateCompleted:
				logger.Info("replaying stored response", slog.String("key", key))
				writeStored(w, reservation.Record)
				return
			case ReservationStatePending:
				respondError(w, http.StatusConflict, "request with this idempotency key is in progress")
				return
			}

			rec := newRecorder()
			next.ServeHTTP(rec, r)

			// запрос мог быть отменен клиентом, состояние ключа все равно нужно записать
			ctx := context.WithoutCancel(r.Context())
			if rec.status >= 200 && rec.status < 300 {
				resp := Response{Status: rec.status, Headers: rec.header.Clone(), Body: rec.body.Bytes()}
				if err := store.SaveResponse(ctx, scoped, fingerprint, resp, ttl); err != nil {
					logger.Error("failed to save idempotent response", slog.Any("error", err))
				}
			} else if err := store.Release(ctx, scoped); err != nil {
				logger.Error("failed to release idempotency key", slog.Any("error", err))
			}

			rec.flush(w)
		})
	}
}

func requestFingerprint(r *http.Request, body []byte, identity string) string {
	sum := sha256.Sum256(body)
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteString("|")
	b.WriteString(r.URL.Path)
	b.WriteString("|")
	b.WriteString(identity)
	b.WriteString("|")
	b.WriteString(hex.EncodeToString(sum[:]))
	full := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(full[:])
}

func writeStored(w http.ResponseWriter, rec Record) {
	for name, values := range rec.ResponseHeaders {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(ReplayHeader, "true")
	status := rec.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(rec.ResponseBody)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// recorder буферизует ответ, чтобы сохранить его до отправки клиенту
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *recorder) flush(w http.ResponseWriter) {
	for name, values := range r.header {
		w.Header()[name] = values
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(r.body.Bytes())
}
