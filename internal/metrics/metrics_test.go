package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_Counters(t *testing.T) {
	c := New()

	c.ObserveOrder("TWAP", "FILLED")
	c.ObserveOrder("TWAP", "FILLED")
	c.ObserveOrder("TWAP", "FAILED")
	c.ObserveRun("TWAP", "partial")
	c.DroppedEvents.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Orders.WithLabelValues("TWAP", "FILLED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Orders.WithLabelValues("TWAP", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StrategyRuns.WithLabelValues("TWAP", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DroppedEvents))
}

func TestCollectors_GatewayLatency(t *testing.T) {
	c := New()
	c.ObserveGatewayCall("place_order", 120*time.Millisecond, nil)
	c.ObserveGatewayCall("place_order", time.Second, errors.New("timeout"))

	assert.Equal(t, 2, testutil.CollectAndCount(c.GatewayLatency))
}

func TestCollectors_HandlerExposesRegistry(t *testing.T) {
	c := New()
	c.ObserveOrder("GRID", "NEW")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `futures_trader_orders_total{status="NEW",strategy="GRID"} 1`)
}
