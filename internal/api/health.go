package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/forumport/internal/ws"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	store     Pinger
	hub       *ws.Hub
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. store and hub may be nil.
func NewHealthHandler(store Pinger, hub *ws.Hub, version string) *HealthHandler {
	return &HealthHandler{store: store, hub: hub, version: version, startTime: time.Now()}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Subscribers   int     `json:"subscribers"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	if h.hub != nil {
		resp.Subscribers = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}
