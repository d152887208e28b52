// Package httpapi wires the aggregator's HTTP surface: health/readiness
// (grounded on the teacher's monitoring.HealthChecker), /metrics via
// promhttp, and WebSocket route registration against wsfanout hubs. This
// package owns no business logic — it only exposes what the window engine,
// signal detector, and orchestrator already compute.
package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status mirrors the teacher's three-level health taxonomy.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth is one named subsystem's current status.
type ComponentHealth struct {
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CheckFunc computes one component's current health on demand.
type CheckFunc func() ComponentHealth

// HealthReport is the JSON body served at /health.
type HealthReport struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	UptimeSecs float64                    `json:"uptime_seconds"`
	Goroutines int                        `json:"goroutines"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker aggregates named component checks into one report.
type HealthChecker struct {
	startTime time.Time

	mu       sync.RWMutex
	checkers map[string]CheckFunc
}

// NewHealthChecker constructs an empty HealthChecker; register components
// with RegisterCheck before mounting it.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		checkers:  make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a named component check.
func (hc *HealthChecker) RegisterCheck(name string, fn CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkers[name] = fn
}

// Report runs every registered check and rolls them up into one status: the
// worst individual status wins.
func (hc *HealthChecker) Report() HealthReport {
	hc.mu.RLock()
	checkers := make(map[string]CheckFunc, len(hc.checkers))
	for k, v := range hc.checkers {
		checkers[k] = v
	}
	hc.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checkers))
	overall := StatusHealthy
	for name, fn := range checkers {
		ch := fn()
		components[name] = ch
		switch {
		case ch.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case ch.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	return HealthReport{
		Status:     overall,
		Timestamp:  time.Now(),
		UptimeSecs: time.Since(hc.startTime).Seconds(),
		Goroutines: runtime.NumGoroutine(),
		Components: components,
	}
}

// Mux builds the HTTP handler: /health, /ping, /metrics, and whatever
// additional routes the caller registers via extra (e.g. WebSocket
// endpoints bound to wsfanout hubs, or /api/dashboard_data).
func Mux(hc *HealthChecker, extra func(mux *http.ServeMux)) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := hc.Report()
		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})

	mux.Handle("/metrics", promhttp.Handler())

	if extra != nil {
		extra(mux)
	}
	return mux
}
