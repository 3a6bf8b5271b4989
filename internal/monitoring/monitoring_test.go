package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordViolation increments the per-rule counter
func TestRecordViolation(t *testing.T) {
	before := testutil.ToFloat64(violationsTotal.WithLabelValues("max_leverage"))
	RecordViolation("max_leverage")
	assert.Equal(t, before+1, testutil.ToFloat64(violationsTotal.WithLabelValues("max_leverage")))
}

// TestUpdatePortfolio sets and forgets session gauges
func TestUpdatePortfolio(t *testing.T) {
	UpdatePortfolio("s-1", 101000, 0.02)
	assert.Equal(t, 101000.0, testutil.ToFloat64(equityGauge.WithLabelValues("s-1")))
	ForgetPortfolio("s-1")
	assert.Equal(t, 0.0, testutil.ToFloat64(equityGauge.WithLabelValues("s-1")))
}

// TestMetricsHandler exposes registered series
func TestMetricsHandler(t *testing.T) {
	RecordTrade("AAPL", "buy", "entry", 1000)
	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "qre_trades_total"))
}

// TestHealthChecker reports degraded when a session failed
func TestHealthChecker(t *testing.T) {
	counts := SessionCounts{Active: 2}
	h := NewHealthChecker(func() SessionCounts { return counts })
	h.MarkTrade(time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 2, body.Sessions.Active)

	counts.Failed = 1
	assert.Equal(t, "degraded", h.Status().Status)
	h.ReportError("invariant breach in s-3")
	assert.Equal(t, "unhealthy", h.Status().Status)
}
