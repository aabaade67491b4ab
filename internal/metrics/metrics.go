// Package metrics defines Prometheus metrics for forumport.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forumport_http_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_http_requests_total",
			Help: "Total status server requests",
		},
		[]string{"method", "path", "status"},
	)

	EntitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_entities_total",
			Help: "Entity outcomes by kind and outcome",
		},
		[]string{"entity", "outcome"},
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forumport_batch_duration_seconds",
			Help:    "Bulk insert batch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"table"},
	)

	BatchRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_batch_rows_total",
			Help: "Rows submitted in bulk insert batches",
		},
		[]string{"table"},
	)

	PhaseDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forumport_phase_duration_seconds",
			Help: "Duration of the last run of each pipeline phase",
		},
		[]string{"phase"},
	)

	PostsRewritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumport_posts_rewritten_total",
			Help: "Posts whose raw and cooked bodies were written back",
		},
	)

	UnresolvedReferences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_unresolved_references_total",
			Help: "Markup references left unchanged because their target was not imported",
		},
		[]string{"rule"},
	)

	RenderFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumport_render_failures_total",
			Help: "Posts whose cooked body fell back to the raw body",
		},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_worker_tasks_total",
			Help: "Worker pool tasks by pool and result",
		},
		[]string{"pool", "result"},
	)

	WorkerReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_worker_reconnects_total",
			Help: "Store handles reopened after a transient failure",
		},
		[]string{"pool"},
	)

	StatsStepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumport_stats_step_failures_total",
			Help: "Failed stats recomputation steps",
		},
		[]string{"step"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forumport_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		EntitiesTotal, BatchDuration, BatchRows, PhaseDuration,
		PostsRewritten, UnresolvedReferences, RenderFailures,
		TasksTotal, WorkerReconnects, StatsStepFailures,
		WSConnections,
	)
}
