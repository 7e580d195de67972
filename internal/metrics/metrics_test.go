package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan(time.Second)
		m.IncSignal("UP")
		m.IncSinkFailure("log")
		m.AddAutoFetch(3, nil)
		m.SetBreakerState(1, true)
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IncSignal("UP")
	m.IncSignal("UP")
	m.IncSignal("DOWN")
	m.AddHistoryTrimmed(500)
	m.ObservePartition(2, 5)
	m.SetBreakerState(1, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("DOWN")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.HistoryTrimmed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RefreshPartition.WithLabelValues("fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheCircuitBreakerTrips))
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "monitor not running yet")

	h.RecordScan(true, 3, time.Now())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 3.0, body["symbol_count"])
}
