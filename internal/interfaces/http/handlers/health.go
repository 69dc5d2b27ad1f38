package handlers

import "net/http"

// Pinger is the slice of *pgxpool.Pool (or any backing store) the readiness
// probe needs to confirm the database is reachable.
type Pinger interface {
	Ping() error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ready Pinger
}

// NewHealthHandler constructs a HealthHandler. ready may be nil, in which
// case Readiness always reports healthy (useful for the worker process,
// which exposes /healthz and /readyz without an HTTP-facing dependency
// check of its own).
func NewHealthHandler(ready Pinger) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Liveness reports whether the process is running at all.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the service can currently serve traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
