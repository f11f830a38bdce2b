package handler

import (
	"net/http"
)

// Pinger reports whether a dependency is usable.
type Pinger interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	crmReady bool
	events   Pinger
}

// NewHealthHandler creates a new health handler. crmReady reports whether a
// CRM router was configured; events is nil when the event stream is off.
func NewHealthHandler(crmReady bool, events Pinger) *HealthHandler {
	return &HealthHandler{
		crmReady: crmReady,
		events:   events,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.crmReady {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "CRM not configured",
		})
		return
	}

	if h.events != nil && !h.events.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
