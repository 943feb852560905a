package urllog

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/dental-mall/internal/lib/metrics"
)

// CustomLoggerMiddleware пишет в лог каждый запрос и, если переданы метрики, считает запросы и задержку
func CustomLoggerMiddleware(log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			log.Info("request completed",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", elapsed),
			)
			if m != nil {
				m.Requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
				m.LatencyMS.WithLabelValues(r.Method).Observe(float64(elapsed.Microseconds()) / 1000)
			}
		})
	}
}
