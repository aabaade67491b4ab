// Package workpool runs per-topic tasks across a fixed number of workers,
// each owning its own destination store handle for its lifetime.
package workpool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/metrics"
)

const (
	defaultWorkers         = 4
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxElapsed      = 2 * time.Minute
)

// Task processes one id with the worker's store handle. It must be safe to
// run again after a retryable failure.
type Task func(ctx context.Context, store domain.BulkStore, id int64) error

// Options tune a Pool. Zero values select the defaults.
type Options struct {
	// Name labels logs and metrics ("rewrite", "post_search").
	Name string

	Workers int

	// Retryable classifies task and open errors. A retryable failure closes
	// the worker's handle, opens a fresh one and runs the task again. Nil
	// treats every error as permanent.
	Retryable func(error) bool

	InitialInterval time.Duration
	MaxElapsed      time.Duration

	// Progress, if set, is called after each completed task with the number
	// of tasks done so far and the total.
	Progress func(done, total int)
}

// Pool is a bounded worker pool with per-worker store handles.
type Pool struct {
	factory domain.StoreFactory
	log     *logrus.Logger
	opts    Options
}

// Result summarizes a Run.
type Result struct {
	Completed  int
	Reconnects int
}

// New creates a Pool that opens worker handles with factory.
func New(factory domain.StoreFactory, log *logrus.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaultInitialInterval
	}

	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = defaultMaxElapsed
	}

	if opts.Name == "" {
		opts.Name = "pool"
	}

	return &Pool{factory: factory, log: log, opts: opts}
}

// Run feeds ids to the workers and blocks until every task completed or one
// failed permanently. Completed tasks are never run again; a retried task is
// retried on its own.
func (p *Pool) Run(ctx context.Context, ids []int64, task Task) (Result, error) {
	var (
		done       atomic.Int64
		reconnects atomic.Int64
	)

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int64)

	g.Go(func() error {
		defer close(jobs)

		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	workers := min(p.opts.Workers, max(len(ids), 1))

	p.log.WithFields(logrus.Fields{
		"pool":    p.opts.Name,
		"workers": workers,
		"tasks":   len(ids),
	}).Info("starting workers")

	for w := range workers {
		g.Go(func() error {
			wk := &worker{pool: p, id: w, reconnects: &reconnects}
			defer wk.close()

			for id := range jobs {
				if err := wk.run(ctx, id, task); err != nil {
					metrics.TasksTotal.WithLabelValues(p.opts.Name, "failed").Inc()
					return fmt.Errorf("%s task %d: %w", p.opts.Name, id, err)
				}

				metrics.TasksTotal.WithLabelValues(p.opts.Name, "completed").Inc()

				n := done.Add(1)
				if p.opts.Progress != nil {
					p.opts.Progress(int(n), len(ids))
				}
			}

			return nil
		})
	}

	err := g.Wait()

	return Result{Completed: int(done.Load()), Reconnects: int(reconnects.Load())}, err
}

type worker struct {
	pool       *Pool
	id         int
	store      domain.BulkStore
	reconnects *atomic.Int64
}

func (w *worker) close() {
	if w.store != nil {
		w.store.Close()
		w.store = nil
	}
}

func (w *worker) retryable(err error) bool {
	return w.pool.opts.Retryable != nil && w.pool.opts.Retryable(err)
}

// run executes task for one id, reopening the handle between attempts when
// the failure is transient.
func (w *worker) run(ctx context.Context, id int64, task Task) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.pool.opts.InitialInterval
	bo.MaxElapsedTime = w.pool.opts.MaxElapsed

	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		if w.store == nil {
			s, err := w.pool.factory(ctx)
			if err != nil {
				if w.retryable(err) {
					w.logRetry(id, attempt, err, "opening store handle")
					return err
				}

				return backoff.Permanent(fmt.Errorf("opening store handle: %w", err))
			}

			w.store = s
		}

		err := task(ctx, w.store, id)
		if err == nil {
			return nil
		}

		if !w.retryable(err) {
			return backoff.Permanent(err)
		}

		w.logRetry(id, attempt, err, "task failed, reconnecting")
		w.close()
		w.reconnects.Add(1)
		metrics.WorkerReconnects.WithLabelValues(w.pool.opts.Name).Inc()

		return err
	}, backoff.WithContext(bo, ctx))
}

func (w *worker) logRetry(id int64, attempt int, err error, msg string) {
	w.pool.log.WithError(err).WithFields(logrus.Fields{
		"pool":      w.pool.opts.Name,
		"worker_id": w.id,
		"topic_id":  id,
		"attempt":   attempt,
	}).Warn(msg)
}
