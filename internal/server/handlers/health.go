package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/realtime"
)

// HealthStatus is the overall or per-component health classification.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth describes one component's state.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
	Detail  any          `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthHandlers reports process and component health.
type HealthHandlers struct {
	db      *database.DB
	hub     *realtime.Hub
	version string
	started time.Time
}

// NewHealthHandlers creates new health handlers. hub may be nil.
func NewHealthHandlers(db *database.DB, hub *realtime.Hub, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		hub:     hub,
		version: version,
		started: time.Now(),
	}
}

const healthCheckTimeout = 5 * time.Second

// Health handles GET /health.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overall := HealthStatusHealthy

	dbStart := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		components["database"] = ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Message: err.Error(),
		}
		overall = HealthStatusUnhealthy
	} else {
		components["database"] = ComponentHealth{
			Status:  HealthStatusHealthy,
			Latency: time.Since(dbStart).String(),
		}
	}

	if h.hub != nil {
		components["realtime"] = ComponentHealth{
			Status: HealthStatusHealthy,
			Detail: map[string]int{"connections": h.hub.ConnectionCount()},
		}
	}

	status := http.StatusOK
	if overall != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, HealthResponse{
		Status:     overall,
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	})
}
