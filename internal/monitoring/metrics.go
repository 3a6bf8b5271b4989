package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qre_trades_total",
			Help: "Total number of simulated fills",
		},
		[]string{"symbol", "side", "reason"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qre_trade_notional",
			Help:    "Distribution of fill notionals",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qre_current_price",
			Help: "Last price seen for a symbol",
		},
		[]string{"symbol"},
	)

	// Portfolio metrics
	equityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qre_equity",
			Help: "Total portfolio equity",
		},
		[]string{"session"},
	)

	drawdownGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qre_drawdown",
			Help: "Drawdown from running peak equity",
		},
		[]string{"session"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qre_active_sessions",
			Help: "Number of paper-trading sessions not yet stopped",
		},
	)

	// Risk metrics
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qre_constraint_violations_total",
			Help: "Orders rejected by a risk rule",
		},
		[]string{"rule"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qre_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeNotional)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(equityGauge)
	prometheus.MustRegister(drawdownGauge)
	prometheus.MustRegister(activeSessions)
	prometheus.MustRegister(violationsTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records a fill
func RecordTrade(symbol, side, reason string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side, reason).Inc()
	tradeNotional.WithLabelValues(symbol).Observe(notional)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdatePortfolio publishes equity and drawdown for a session or run
func UpdatePortfolio(session string, equity, drawdown float64) {
	equityGauge.WithLabelValues(session).Set(equity)
	drawdownGauge.WithLabelValues(session).Set(drawdown)
}

// ForgetPortfolio drops the per-session series once a session is removed
func ForgetPortfolio(session string) {
	equityGauge.DeleteLabelValues(session)
	drawdownGauge.DeleteLabelValues(session)
}

// SetActiveSessions sets the active session gauge
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordViolation records a rejected order
func RecordViolation(rule string) {
	violationsTotal.WithLabelValues(rule).Inc()
}

// RecordError records an error metric
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}
