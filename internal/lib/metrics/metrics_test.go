package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/linemk/dental-mall/internal/lib/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.CheckoutResult(metrics.CheckoutSuccess)
	m.CheckoutResult(metrics.CheckoutSuccess)
	m.CheckoutResult(metrics.CheckoutEmptyCart)
	m.SideEffectFailed(metrics.StepEmail)
	m.OrderNumberCollision()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkout.WithLabelValues(metrics.CheckoutSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkout.WithLabelValues(metrics.CheckoutEmptyCart)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffectFailures.WithLabelValues(metrics.StepEmail)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderNumberCollisions))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.CheckoutResult(metrics.CheckoutSuccess)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dentmall_checkout_total{result="success"} 1`)
}
