package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

var startTime = time.Now()

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Health reports service status and uptime
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "healthy",
		"version": h.version,
		"uptime":  time.Since(startTime).String(),
	})
}
