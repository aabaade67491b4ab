package migration

import "sync/atomic"

type progressEvent struct {
	Phase string `json:"phase"`
	Table string `json:"table,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// progress reports every materializer batch.
func (p *Pipeline) progress(phase string) func(table string, done, total int) {
	return func(table string, done, total int) {
		p.pub.Publish("progress", progressEvent{Phase: phase, Table: table, Done: done, Total: total})
	}
}

// taskProgress reports worker pool completion in roughly one-percent steps.
func (p *Pipeline) taskProgress(pool string) func(done, total int) {
	var last atomic.Int64

	return func(done, total int) {
		step := max(total/100, 1)

		prev := last.Load()
		if done != total && done-int(prev) < step {
			return
		}

		if !last.CompareAndSwap(prev, int64(done)) {
			return
		}

		p.pub.Publish("progress", progressEvent{Phase: pool, Done: done, Total: total})
	}
}
