package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnavailable  = "unavailable"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides health check endpoints for Kubernetes liveness and readiness checks.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// shuttingDown is set once graceful shutdown begins
	shuttingDown atomic.Bool
	// db is pinged by the readiness and detailed checks
	db        Pinger
	startTime time.Time
	version   string
}

// NewHealthChecker creates a new HealthChecker. db may be nil.
func NewHealthChecker(db Pinger, version string) *HealthChecker {
	h := &HealthChecker{
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// MarkShuttingDown makes readiness fail so load balancers drain the instance.
func (h *HealthChecker) MarkShuttingDown() {
	h.shuttingDown.Store(true)
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}

// checks runs every registered check and reports whether all passed.
func (h *HealthChecker) checks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string)
	allOk := true

	if h.ready.Load() {
		checks["ready"] = healthStatusOK
	} else {
		checks["ready"] = healthStatusNotReady
		allOk = false
	}

	if h.shuttingDown.Load() {
		checks["shutdown"] = healthStatusShuttingDown
		allOk = false
	} else {
		checks["shutdown"] = healthStatusOK
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = healthStatusUnavailable
			allOk = false
		} else {
			checks["database"] = healthStatusOK
		}
	}
	return checks, allOk
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness only tells whether the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ok := h.checks(r.Context())
		response := HealthResponse{Status: healthStatusOK, Checks: checks}
		status := http.StatusOK
		if !ok {
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ok := h.checks(r.Context())
		response := DetailedHealthResponse{
			Status:  healthStatusOK,
			Version: h.version,
			Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
			Checks:  checks,
		}
		status := http.StatusOK
		switch {
		case h.shuttingDown.Load():
			response.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		case !ok:
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
