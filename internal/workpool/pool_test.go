package workpool

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/models"
)

var errTransient = errors.New("connection reset by peer")

// fakeStore is a BulkStore that only tracks Close.
type fakeStore struct {
	id     int
	closed bool
}

func (f *fakeStore) InsertReturning(context.Context, models.InsertOp) ([]models.InsertResult, error) {
	return nil, nil
}
func (f *fakeStore) UpdateBatch(context.Context, models.UpdateOp) error { return nil }
func (f *fakeStore) Recompute(context.Context, models.RecomputeStep) error { return nil }
func (f *fakeStore) UserBios(context.Context) ([]models.TextRow, error) { return nil, nil }
func (f *fakeStore) TopicIDs(context.Context) ([]int64, error) { return nil, nil }
func (f *fakeStore) WritePostSearchData(context.Context, []models.TextRow) error { return nil }
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() { f.closed = true }
func (f *fakeStore) PostSearchDocs(context.Context, int64) ([]models.SearchDoc, error) {
	return nil, nil
}

type factory struct {
	mu     sync.Mutex
	opened []*fakeStore
	fail   int
}

func (f *factory) open(context.Context) (domain.BulkStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail > 0 {
		f.fail--
		return nil, errTransient
	}

	s := &fakeStore{id: len(f.opened)}
	f.opened = append(f.opened, s)

	return s, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func newPool(f *factory, workers int) *Pool {
	return New(f.open, testLogger(), Options{
		Name:            "test",
		Workers:         workers,
		Retryable:       isTransient,
		InitialInterval: time.Millisecond,
		MaxElapsed:      5 * time.Second,
	})
}

func TestRunCompletesEveryTaskOnce(t *testing.T) {
	f := &factory{}
	p := newPool(f, 3)

	var mu sync.Mutex
	seen := map[int64]int{}

	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	res, err := p.Run(context.Background(), ids, func(_ context.Context, _ domain.BulkStore, id int64) error {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Completed != len(ids) {
		t.Errorf("Completed = %d, want %d", res.Completed, len(ids))
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("task %d ran %d times, want 1", id, seen[id])
		}
	}

	if len(f.opened) > 3 {
		t.Errorf("opened %d handles for 3 workers", len(f.opened))
	}
	for _, s := range f.opened {
		if !s.closed {
			t.Errorf("handle %d not closed", s.id)
		}
	}
}

func TestRunReconnectsAndRetriesOnlyFailedTask(t *testing.T) {
	f := &factory{}
	p := newPool(f, 1)

	var mu sync.Mutex
	var runs []int64
	failed := false

	ids := []int64{10, 20, 30}
	res, err := p.Run(context.Background(), ids, func(_ context.Context, s domain.BulkStore, id int64) error {
		mu.Lock()
		defer mu.Unlock()

		runs = append(runs, id)
		if id == 20 && !failed {
			failed = true
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int64{10, 20, 20, 30}
	if len(runs) != len(want) {
		t.Fatalf("runs = %v, want %v", runs, want)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Fatalf("runs = %v, want %v", runs, want)
		}
	}

	if res.Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", res.Reconnects)
	}
	if len(f.opened) != 2 || !f.opened[0].closed {
		t.Errorf("expected first handle closed and a second opened, got %d handles", len(f.opened))
	}
}

func TestRunRetriesFailedOpen(t *testing.T) {
	f := &factory{fail: 2}
	p := newPool(f, 1)

	res, err := p.Run(context.Background(), []int64{1}, func(context.Context, domain.BulkStore, int64) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Completed != 1 {
		t.Errorf("Completed = %d, want 1", res.Completed)
	}
}

func TestRunStopsOnPermanentError(t *testing.T) {
	f := &factory{}
	p := newPool(f, 2)

	boom := errors.New("syntax error")
	_, err := p.Run(context.Background(), []int64{1, 2, 3}, func(_ context.Context, _ domain.BulkStore, id int64) error {
		if id == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRunReportsProgress(t *testing.T) {
	f := &factory{}

	var mu sync.Mutex
	var seen []int
	p := New(f.open, testLogger(), Options{
		Workers: 2,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 4 {
				t.Errorf("total = %d, want 4", total)
			}
			seen = append(seen, done)
		},
	})

	if _, err := p.Run(context.Background(), []int64{1, 2, 3, 4}, func(context.Context, domain.BulkStore, int64) error {
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sort.Ints(seen)
	if len(seen) != 4 || seen[0] != 1 || seen[3] != 4 {
		t.Errorf("progress = %v", seen)
	}
}

func TestRunWithNoTasks(t *testing.T) {
	f := &factory{}
	res, err := newPool(f, 4).Run(context.Background(), nil, func(context.Context, domain.BulkStore, int64) error {
		t.Error("task called with no ids")
		return nil
	})
	if err != nil || res.Completed != 0 {
		t.Errorf("Run(nil) = %+v, %v", res, err)
	}
	if len(f.opened) != 0 {
		t.Errorf("opened %d handles with no tasks", len(f.opened))
	}
}
