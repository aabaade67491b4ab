// Package api serves the read-only status endpoints of a running migration.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/middleware"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/ws"
)

// ReportSource exposes the report of the current or last run.
type ReportSource interface {
	Report() *models.Report
}

// Pinger checks destination connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Hub         *ws.Hub
	Reports     ReportSource
	Store       Pinger
	CORSOrigins []string
	Version     string
}

func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.LoopbackOnly())

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			MaxAge:           1 * time.Hour,
			AllowCredentials: false,
		}))
	}

	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	health := NewHealthHandler(deps.Store, deps.Hub, deps.Version)
	reports := NewReportHandler(deps.Reports)

	api.GET("/health", health.Liveness)
	api.GET("/report", reports.Get)

	if deps.Hub != nil {
		api.GET("/ws", wsHandler(ctx, deps.Log, deps.Hub, deps.CORSOrigins))
	}
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
