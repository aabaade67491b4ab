// Package migration runs the import pipeline end to end: load, remap,
// materialize, rewrite and recompute.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/materialize"
	"github.com/persistorai/forumport/internal/metrics"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/remap"
	"github.com/persistorai/forumport/internal/render"
	"github.com/persistorai/forumport/internal/rewrite"
	"github.com/persistorai/forumport/internal/source"
	"github.com/persistorai/forumport/internal/stats"
	"github.com/persistorai/forumport/internal/store"
	"github.com/persistorai/forumport/internal/workpool"
)

// Phase names, in run order.
const (
	PhaseLoad        = "load"
	PhaseRemap       = "remap"
	PhaseMaterialize = "materialize"
	PhaseRewrite     = "rewrite"
	PhaseStats       = "stats"
)

// Options configure a Pipeline.
type Options struct {
	Source      source.Options
	DatabaseURL string
	Store       store.Options

	Workers       int
	BatchSize     int
	PostBatchSize int
	BaseURL       string

	// RetryInterval and RetryMaxElapsed tune worker reconnects. Zero selects
	// the pool defaults.
	RetryInterval   time.Duration
	RetryMaxElapsed time.Duration

	// DryRun stops after the remap phase without touching the destination.
	DryRun bool
}

// Publisher receives progress events. ws.Hub implements it.
type Publisher interface {
	Publish(eventType string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Pipeline runs migrations. The most recent run's report stays readable while
// the run is in progress.
type Pipeline struct {
	log      *logrus.Logger
	opts     Options
	pub      Publisher
	renderer domain.Renderer
	current  atomic.Pointer[models.Report]
}

// New creates a Pipeline. A nil pub discards events.
func New(log *logrus.Logger, opts Options, pub Publisher) *Pipeline {
	if pub == nil {
		pub = nopPublisher{}
	}

	return &Pipeline{log: log, opts: opts, pub: pub, renderer: render.NewCooker()}
}

// Report returns the report of the current or last run, or nil before the
// first run starts.
func (p *Pipeline) Report() *models.Report {
	return p.current.Load()
}

// Check loads and remaps the export without touching the destination.
func (p *Pipeline) Check(ctx context.Context) (*models.Report, error) {
	report := p.begin()

	_, err := p.prepare(ctx, report)
	p.finish(report)

	return report, err
}

// Run performs the whole migration. Failures of single entities are recorded
// in the report; the returned error is set only for fatal failures.
func (p *Pipeline) Run(ctx context.Context) (*models.Report, error) {
	report := p.begin()
	defer p.finish(report)

	ds, err := p.prepare(ctx, report)
	if err != nil || p.opts.DryRun {
		return report, err
	}

	st, err := store.Open(ctx, p.opts.DatabaseURL, p.log, p.opts.Store)
	if err != nil {
		return report, err
	}
	defer st.Close()

	err = p.phase(report, PhaseMaterialize, func() error {
		return materialize.New(st, p.log, materialize.Options{
			BatchSize:     p.opts.BatchSize,
			PostBatchSize: p.opts.PostBatchSize,
			Renderer:      p.renderer,
			Progress:      p.progress(PhaseMaterialize),
		}).Run(ctx, ds)
	})
	if err != nil {
		return report, err
	}

	factory := store.Factory(p.opts.DatabaseURL, p.log, p.opts.Store)

	err = p.phase(report, PhaseRewrite, func() error {
		rw := rewrite.New(rewrite.NewIndex(ds), p.opts.BaseURL, p.log)
		pass := rewrite.NewPass(rw, p.renderer, p.pool(factory, "rewrite"), p.opts.PostBatchSize, p.log)

		res, err := pass.Run(ctx, ds)
		p.log.WithFields(logrus.Fields{"topics": res.Completed, "reconnects": res.Reconnects}).Info("posts rewritten")

		return err
	})
	if err != nil {
		return report, err
	}

	// Stats steps are best-effort; their failures land in the report only.
	_ = p.phase(report, PhaseStats, func() error {
		var failed []error

		for _, r := range stats.New(st, p.renderer, p.pool(factory, "post_search"), p.log).Run(ctx) {
			report.AddPhase(PhaseStats+"/"+r.Name, r.Duration, r.Err)

			if r.Err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", r.Name, r.Err))
			}
		}

		return errors.Join(failed...)
	})

	return report, nil
}

func (p *Pipeline) begin() *models.Report {
	report := models.NewReport(uuid.NewString())
	p.current.Store(report)

	p.log.WithField("run_id", report.RunID()).Info("migration started")

	return report
}

// finish exports entity tallies to metrics and publishes the final report.
func (p *Pipeline) finish(report *models.Report) {
	snap := report.Snapshot()

	for _, entity := range snap.EntityNames() {
		t := snap.Entities[entity]
		metrics.EntitiesTotal.WithLabelValues(entity, string(models.OutcomeAccepted)).Add(float64(t.Accepted))
		metrics.EntitiesTotal.WithLabelValues(entity, string(models.OutcomeRejected)).Add(float64(t.Rejected))
		metrics.EntitiesTotal.WithLabelValues(entity, string(models.OutcomeConflict)).Add(float64(t.Conflict))
	}

	p.pub.Publish("report", snap)
}

// prepare runs the load and remap phases.
func (p *Pipeline) prepare(ctx context.Context, report *models.Report) (*models.Dataset, error) {
	var ds *models.Dataset

	err := p.phase(report, PhaseLoad, func() error {
		loader, err := source.New(p.log, p.opts.Source)
		if err != nil {
			return err
		}

		ds, err = loader.Load(ctx, report)

		return err
	})
	if err != nil {
		return nil, err
	}

	_ = p.phase(report, PhaseRemap, func() error {
		remap.New(p.log, p.opts.Source.CategoryNameMax).Apply(ds)

		return nil
	})

	return ds, nil
}

type phaseEvent struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration_seconds,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// phase times fn, records it in the report and announces its start and end.
func (p *Pipeline) phase(report *models.Report, name string, fn func() error) error {
	p.pub.Publish("phase", phaseEvent{Name: name, Status: "started"})
	p.log.WithField("phase", name).Info("phase started")

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	report.AddPhase(name, elapsed, err)
	metrics.PhaseDuration.WithLabelValues(name).Set(elapsed.Seconds())

	evt := phaseEvent{Name: name, Status: "finished", Duration: elapsed.Seconds()}
	fields := logrus.Fields{"phase": name, "duration": elapsed}

	if err != nil {
		evt.Status = "failed"
		evt.Error = err.Error()
		p.log.WithError(err).WithFields(fields).Error("phase failed")
	} else {
		p.log.WithFields(fields).Info("phase finished")
	}

	p.pub.Publish("phase", evt)

	return err
}

func (p *Pipeline) pool(factory domain.StoreFactory, name string) *workpool.Pool {
	return workpool.New(factory, p.log, workpool.Options{
		Name:            name,
		Workers:         p.opts.Workers,
		Retryable:       store.IsRetryable,
		InitialInterval: p.opts.RetryInterval,
		MaxElapsed:      p.opts.RetryMaxElapsed,
		Progress:        p.taskProgress(name),
	})
}
