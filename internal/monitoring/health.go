package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// SessionCounts summarizes session states for health reporting
type SessionCounts struct {
	Active  int `json:"active"`
	Stopped int `json:"stopped"`
	Failed  int `json:"failed"`
}

// HealthChecker reports liveness of the paper-trading service
type HealthChecker struct {
	mu        sync.RWMutex
	lastTrade time.Time
	lastPrice time.Time
	errors    []string
	counts    func() SessionCounts
}

// HealthStatus is the JSON body served by the health endpoint
type HealthStatus struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	LastTrade time.Time     `json:"last_trade"`
	LastPrice time.Time     `json:"last_price"`
	Sessions  SessionCounts `json:"sessions"`
	Uptime    string        `json:"uptime"`
	Errors    []string      `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker. counts may be nil.
func NewHealthChecker(counts func() SessionCounts) *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
		counts: counts,
	}
}

// MarkTrade records the time of the latest fill
func (h *HealthChecker) MarkTrade(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTrade = at
}

// MarkPrice records the time of the latest price update
func (h *HealthChecker) MarkPrice(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrice = at
}

// ReportError records a fatal condition; keeps the last 20
func (h *HealthChecker) ReportError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

// Status computes the current health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var counts SessionCounts
	if h.counts != nil {
		counts = h.counts()
	}

	status := "healthy"
	if counts.Failed > 0 {
		status = "degraded"
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastTrade: h.lastTrade,
		LastPrice: h.lastPrice,
		Sessions:  counts,
		Uptime:    time.Since(startTime).String(),
		Errors:    append([]string(nil), h.errors...),
	}
}

// ServeHTTP serves the health endpoint
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
