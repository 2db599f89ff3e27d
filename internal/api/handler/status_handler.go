package handler

import (
	"net/http"

	"github.com/notifyhub/safety-dispatch/internal/tracking"
)

// StatusHandler serves a human-readable JSON snapshot of live state.
// Raw Prometheus metrics are available at /metrics via promhttp.
type StatusHandler struct {
	tracking        *tracking.Manager
	relayConfigured bool
}

func NewStatusHandler(mgr *tracking.Manager, relayConfigured bool) *StatusHandler {
	return &StatusHandler{tracking: mgr, relayConfigured: relayConfigured}
}

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"tracking_sessions": h.tracking.Count(),
		"relay_configured":  h.relayConfigured,
	})
}
