package models

import (
	"sort"
	"sync"
	"time"
)

// Entity kinds recorded in a run report.
const (
	EntityGroup      = "group"
	EntityUser       = "user"
	EntityMembership = "membership"
	EntityCategory   = "category"
	EntityPermission = "permission"
	EntityTopic      = "topic"
	EntityPost       = "post"
)

// OutcomeKind tags the fate of one entity.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeConflict OutcomeKind = "conflict"
)

// Outcome is the per-entity result of a load, remap or persist step.
type Outcome struct {
	Entity   string      `json:"entity"`
	LegacyID int64       `json:"legacy_id"`
	Kind     OutcomeKind `json:"kind"`
	Reason   string      `json:"reason,omitempty"`
}

// Accepted builds an accepted outcome.
func Accepted(entity string, legacyID int64) Outcome {
	return Outcome{Entity: entity, LegacyID: legacyID, Kind: OutcomeAccepted}
}

// Rejected builds a rejected outcome with a reason.
func Rejected(entity string, legacyID int64, reason string) Outcome {
	return Outcome{Entity: entity, LegacyID: legacyID, Kind: OutcomeRejected, Reason: reason}
}

// Conflict builds a uniqueness-conflict outcome with a reason.
func Conflict(entity string, legacyID int64, reason string) Outcome {
	return Outcome{Entity: entity, LegacyID: legacyID, Kind: OutcomeConflict, Reason: reason}
}

// maxSamples caps how many non-accepted outcomes a report keeps verbatim.
const maxSamples = 200

// EntityTally counts outcomes for one entity kind.
type EntityTally struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Conflict int            `json:"conflict"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

// PhaseTiming records how long a pipeline phase took.
type PhaseTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Report aggregates outcomes for a run. It is safe for concurrent use.
type Report struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	entities  map[string]*EntityTally
	phases    []PhaseTiming
	samples   []Outcome
}

// NewReport creates an empty report for the given run.
func NewReport(runID string) *Report {
	return &Report{
		runID:     runID,
		startedAt: time.Now(),
		entities:  make(map[string]*EntityTally),
	}
}

// RunID returns the id of the run the report belongs to.
func (r *Report) RunID() string { return r.runID }

// Record adds an outcome to the tallies.
func (r *Report) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.entities[o.Entity]
	if !ok {
		t = &EntityTally{Reasons: make(map[string]int)}
		r.entities[o.Entity] = t
	}

	switch o.Kind {
	case OutcomeAccepted:
		t.Accepted++

		return
	case OutcomeRejected:
		t.Rejected++
	case OutcomeConflict:
		t.Conflict++
	}

	t.Reasons[o.Reason]++

	if len(r.samples) < maxSamples {
		r.samples = append(r.samples, o)
	}
}

// AddPhase appends a phase timing.
func (r *Report) AddPhase(name string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := PhaseTiming{Name: name, Duration: d}
	if err != nil {
		p.Err = err.Error()
	}

	r.phases = append(r.phases, p)
}

// Tally returns a copy of the counts for one entity kind.
func (r *Report) Tally(entity string) EntityTally {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.entities[entity]
	if !ok {
		return EntityTally{}
	}

	return copyTally(t)
}

// ReportSnapshot is an immutable copy of a report, safe to serialize.
type ReportSnapshot struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	Entities  map[string]EntityTally `json:"entities"`
	Phases    []PhaseTiming          `json:"phases"`
	Samples   []Outcome              `json:"samples,omitempty"`
}

// Snapshot copies the report state.
func (r *Report) Snapshot() ReportSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := ReportSnapshot{
		RunID:     r.runID,
		StartedAt: r.startedAt,
		Entities:  make(map[string]EntityTally, len(r.entities)),
		Phases:    append([]PhaseTiming(nil), r.phases...),
		Samples:   append([]Outcome(nil), r.samples...),
	}

	for k, t := range r.entities {
		s.Entities[k] = copyTally(t)
	}

	return s
}

// EntityNames returns the entity kinds present in the snapshot, sorted.
func (s ReportSnapshot) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for k := range s.Entities {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

func copyTally(t *EntityTally) EntityTally {
	c := EntityTally{
		Accepted: t.Accepted,
		Rejected: t.Rejected,
		Conflict: t.Conflict,
		Reasons:  make(map[string]int, len(t.Reasons)),
	}

	for k, v := range t.Reasons {
		c.Reasons[k] = v
	}

	return c
}
