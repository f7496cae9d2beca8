package task

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/generation"
)

// historyLimit caps the completed-task history kept for queue status
// reporting.
const historyLimit = 20

// record is the internal mutable state of one task. All access goes
// through the registry mutex.
type record struct {
	id          string
	kind        generation.Kind
	owner       string
	request     json.RawMessage
	status      Status
	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time
	result      *artifact.Ref
	err         *TaskError
}

// claimInfo is the subset of a record a worker needs, copied out under
// the lock so processing never touches shared state.
type claimInfo struct {
	kind    generation.Kind
	owner   string
	request json.RawMessage
}

// expiredTask describes one record removed by an expiry pass.
type expiredTask struct {
	id          string
	kind        generation.Kind
	owner       string
	lastStatus  Status
	hasArtifact bool
}

// registry tracks every live task record plus the counters and history
// behind queue status reporting. Status transitions are conditional:
// each mutation checks the current status under the lock and reports
// whether it applied, so late workers and sweeps cannot move a task
// backwards.
type registry struct {
	mu              sync.Mutex
	records         map[string]*record
	pendingOrder    []string
	succeeded       uint64
	failed          uint64
	expired         uint64
	processed       uint64
	totalProcessing time.Duration
	history         []HistoryEntry
}

func newRegistry() *registry {
	return &registry{
		records: make(map[string]*record),
	}
}

// add registers a new pending record at the back of the queue order.
func (r *registry) add(rec *record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.id] = rec
	r.pendingOrder = append(r.pendingOrder, rec.id)
}

// dropPending removes a record that never made it onto the channel.
func (r *registry) dropPending(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	r.removeFromOrderLocked(id)
}

// claim transitions a pending task to running and hands back what a
// worker needs to process it. It reports false when the task is no
// longer pending, in which case the worker must skip it.
func (r *registry) claim(id string, now time.Time) (claimInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.status != StatusPending {
		return claimInfo{}, false
	}
	rec.status = StatusRunning
	rec.startedAt = now
	r.removeFromOrderLocked(id)
	return claimInfo{kind: rec.kind, owner: rec.owner, request: rec.request}, true
}

// finishSucceeded transitions a running task to succeeded and records
// its artifact. It reports false when the task is no longer running,
// meaning the result must be discarded.
func (r *registry) finishSucceeded(id string, ref artifact.Ref, now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.status != StatusRunning {
		return 0, false
	}
	rec.status = StatusSucceeded
	rec.finishedAt = now
	rec.result = &ref

	d := now.Sub(rec.startedAt)
	r.succeeded++
	r.noteProcessedLocked(rec, d, now)
	return d, true
}

// finishFailed transitions a running task to failed with the given
// error. It reports false when the task is no longer running.
func (r *registry) finishFailed(id string, terr TaskError, now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.status != StatusRunning {
		return 0, false
	}
	rec.status = StatusFailed
	rec.finishedAt = now
	rec.err = &terr

	d := now.Sub(rec.startedAt)
	r.failed++
	r.noteProcessedLocked(rec, d, now)
	return d, true
}

// view returns a snapshot of one task without its artifact.
func (r *registry) view(id string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return View{}, false
	}
	v := View{
		ID:          rec.id,
		Kind:        rec.kind,
		Owner:       rec.owner,
		Status:      rec.status,
		SubmittedAt: rec.submittedAt,
	}
	if !rec.startedAt.IsZero() {
		t := rec.startedAt
		v.StartedAt = &t
	}
	if !rec.finishedAt.IsZero() {
		t := rec.finishedAt
		v.FinishedAt = &t
	}
	if rec.err != nil {
		e := *rec.err
		v.Error = &e
	}
	return v, true
}

// remove purges a record outright, used after a successful artifact
// collection so later fetches of the same id miss.
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
}

// pendingPosition returns the 1-based position of a task in the pending
// order, or 0 when the task is not pending.
func (r *registry) pendingPosition(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, pid := range r.pendingOrder {
		if pid == id {
			return i + 1
		}
	}
	return 0
}

// averageProcessing returns the mean duration across all completed
// tasks, or zero before any task has completed.
func (r *registry) averageProcessing() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.processed == 0 {
		return 0
	}
	return r.totalProcessing / time.Duration(r.processed)
}

// expire removes finished records older than finishedCutoff and stuck
// pending or running records older than stuckCutoff, returning what was
// reclaimed so the caller can release artifacts and emit events. An
// expired running task keeps running; its worker discovers the missing
// record at finish time and discards the result.
func (r *registry) expire(finishedCutoff, stuckCutoff, now time.Time) []expiredTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reclaimed []expiredTask
	for id, rec := range r.records {
		switch rec.status {
		case StatusSucceeded, StatusFailed:
			if rec.finishedAt.Before(finishedCutoff) {
				reclaimed = append(reclaimed, expiredTask{
					id:          id,
					kind:        rec.kind,
					owner:       rec.owner,
					lastStatus:  rec.status,
					hasArtifact: rec.status == StatusSucceeded && rec.result != nil,
				})
				delete(r.records, id)
				r.expired++
			}
		case StatusPending:
			if rec.submittedAt.Before(stuckCutoff) {
				rec.status = StatusExpired
				reclaimed = append(reclaimed, expiredTask{
					id:         id,
					kind:       rec.kind,
					owner:      rec.owner,
					lastStatus: StatusPending,
				})
				delete(r.records, id)
				r.removeFromOrderLocked(id)
				r.expired++
				r.appendHistoryLocked(HistoryEntry{
					TaskID:     id,
					Kind:       rec.kind,
					Status:     StatusExpired,
					FinishedAt: now,
				})
			}
		case StatusRunning:
			if rec.startedAt.Before(stuckCutoff) {
				rec.status = StatusExpired
				reclaimed = append(reclaimed, expiredTask{
					id:         id,
					kind:       rec.kind,
					owner:      rec.owner,
					lastStatus: StatusRunning,
				})
				delete(r.records, id)
				r.expired++
				r.appendHistoryLocked(HistoryEntry{
					TaskID:     id,
					Kind:       rec.kind,
					Status:     StatusExpired,
					FinishedAt: now,
				})
			}
		}
	}
	return reclaimed
}

// stats assembles a queue status snapshot. depth is the current channel
// backlog, passed in by the queue.
func (r *registry) stats(depth int) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Depth:     depth,
		Succeeded: r.succeeded,
		Failed:    r.failed,
		Expired:   r.expired,
	}
	for _, rec := range r.records {
		switch rec.status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		}
	}
	if r.processed > 0 {
		s.AvgProcessing = r.totalProcessing / time.Duration(r.processed)
	}
	s.History = make([]HistoryEntry, len(r.history))
	for i, h := range r.history {
		s.History[len(r.history)-1-i] = h
	}
	return s
}

// noteProcessedLocked folds one completed task into the rolling average
// and history. Caller must hold the lock.
func (r *registry) noteProcessedLocked(rec *record, d time.Duration, now time.Time) {
	r.processed++
	r.totalProcessing += d
	r.appendHistoryLocked(HistoryEntry{
		TaskID:     rec.id,
		Kind:       rec.kind,
		Status:     rec.status,
		Duration:   d,
		FinishedAt: now,
	})
}

// appendHistoryLocked appends a history entry, evicting the oldest past
// the cap. Caller must hold the lock.
func (r *registry) appendHistoryLocked(h HistoryEntry) {
	r.history = append(r.history, h)
	if len(r.history) > historyLimit {
		r.history = r.history[1:]
	}
}

// removeFromOrderLocked drops one id from the pending order. Caller
// must hold the lock.
func (r *registry) removeFromOrderLocked(id string) {
	for i, pid := range r.pendingOrder {
		if pid == id {
			r.pendingOrder = append(r.pendingOrder[:i], r.pendingOrder[i+1:]...)
			return
		}
	}
}
