package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dentmall"

// результаты оформления заказа для dentmall_checkout_total
const (
	CheckoutSuccess        = "success"
	CheckoutEmptyCart      = "empty_cart"
	CheckoutInvalidAddress = "invalid_address"
	CheckoutCartLocked     = "cart_locked"
	CheckoutExhausted      = "number_exhausted"
	CheckoutError          = "error"
)

// шаги пост-коммитной обработки для dentmall_side_effect_failures_total
const (
	StepRender  = "render_invoice"
	StepUpload  = "upload_invoice"
	StepPersist = "persist_invoice_url"
	StepEmail   = "send_email"
	StepPublish = "publish_event"
)

type Metrics struct {
	registry *prometheus.Registry

	Checkout              *prometheus.CounterVec
	SideEffectFailures    *prometheus.CounterVec
	OrderNumberCollisions prometheus.Counter
	Requests              *prometheus.CounterVec
	LatencyMS             *prometheus.HistogramVec
}

// New регистрирует метрики в собственном реестре, чтобы в тестах можно было создавать несколько экземпляров
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		Checkout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		SideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Failed post-commit steps (invoice, upload, email, events).",
		}, []string{"step"}),
		OrderNumberCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_number_collisions_total",
			Help:      "Order number candidates that were already taken.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"}),
	}
	reg.MustRegister(m.Checkout, m.SideEffectFailures, m.OrderNumberCollisions, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) CheckoutResult(result string) {
	m.Checkout.WithLabelValues(result).Inc()
}

func (m *Metrics) SideEffectFailed(step string) {
	m.SideEffectFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) OrderNumberCollision() {
	m.OrderNumberCollisions.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
