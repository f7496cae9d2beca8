package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/events"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/metrics"
)

// Config holds the tunables for the task queue.
type Config struct {
	// Workers is the number of concurrent generation workers.
	Workers int

	// QueueDepth bounds how many submissions may wait for a worker.
	// Submissions beyond the bound are rejected with ErrQueueFull.
	QueueDepth int

	// RetentionTTL is how long finished tasks and their artifacts stay
	// fetchable, counted from completion.
	RetentionTTL time.Duration

	// StuckAfter expires tasks that never finished: pending tasks
	// counted from submission, running tasks counted from claim. It
	// guards against wedged generators; the result of an expired
	// running task is discarded when its worker returns.
	StuckAfter time.Duration

	// SweepInterval is how often the expiry pass runs.
	SweepInterval time.Duration

	// WorkspaceRoot is where per-task scratch directories are created.
	WorkspaceRoot string
}

// DefaultConfig returns the queue defaults used when configuration
// leaves a field unset.
func DefaultConfig() Config {
	return Config{
		Workers:       2,
		QueueDepth:    100,
		RetentionTTL:  time.Hour,
		StuckAfter:    30 * time.Minute,
		SweepInterval: 5 * time.Minute,
		WorkspaceRoot: os.TempDir(),
	}
}

// Queue accepts generation submissions, runs them on a fixed worker
// pool, and tracks each task from pending through collection or expiry.
type Queue struct {
	cfg        Config
	registry   *registry
	taskChan   chan string
	store      artifact.Store
	generators *generation.Registry
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewQueue creates a stopped queue. publisher and m may be nil, which
// disables event publishing and metrics respectively. Zero config
// fields fall back to DefaultConfig values.
func NewQueue(
	cfg Config,
	store artifact.Store,
	generators *generation.Registry,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Queue {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.RetentionTTL <= 0 {
		cfg.RetentionTTL = def.RetentionTTL
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = def.StuckAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = def.WorkspaceRoot
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:        cfg,
		registry:   newRegistry(),
		taskChan:   make(chan string, cfg.QueueDepth),
		store:      store,
		generators: generators,
		publisher:  publisher,
		metrics:    m,
		logger:     logger.With("component", "task_queue"),
		ctx:        ctx,
		cancel:     cancel,
		nowFunc:    time.Now,
	}
}

// Start launches the worker pool and the expiry sweeper.
func (q *Queue) Start() {
	q.logger.Info("starting task queue",
		"workers", q.cfg.Workers,
		"queue_depth", q.cfg.QueueDepth,
		"retention_ttl", q.cfg.RetentionTTL)

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.sweeper()
}

// Stop rejects further submissions, cancels in-flight generation, and
// waits for the workers and sweeper to exit. The HTTP surface must be
// drained before calling Stop.
func (q *Queue) Stop() {
	q.logger.Info("stopping task queue")
	q.closed.Store(true)
	q.cancel()
	q.wg.Wait()
	q.logger.Info("task queue stopped")
}

// Submit registers a new task and hands it to the worker pool. It
// returns the task id on success, ErrQueueFull when the backlog is at
// capacity, and ErrQueueClosed after Stop.
func (q *Queue) Submit(ctx context.Context, sub Submission) (string, error) {
	if q.closed.Load() {
		return "", ErrQueueClosed
	}
	if _, err := q.generators.Lookup(sub.Kind); err != nil {
		return "", err
	}

	id, err := newTaskID()
	if err != nil {
		return "", err
	}

	rec := &record{
		id:          id,
		kind:        sub.Kind,
		owner:       sub.Owner,
		request:     append(json.RawMessage(nil), sub.Request...),
		status:      StatusPending,
		submittedAt: q.nowFunc(),
	}
	q.registry.add(rec)

	select {
	case q.taskChan <- id:
	default:
		q.registry.dropPending(id)
		return "", fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.cfg.QueueDepth)
	}

	if q.metrics != nil {
		q.metrics.TasksSubmitted.Inc()
	}
	q.updateDepth()
	q.publish(ctx, events.NewTaskEvent(events.TypeTaskQueued, id, string(sub.Kind), sub.Owner))
	q.logger.Info("task submitted",
		"task_id", id,
		"kind", sub.Kind,
		"owner", sub.Owner,
		"backlog", len(q.taskChan))
	return id, nil
}

// Fetch reports the current state of a task. For a succeeded task it
// atomically collects the artifact: the returned view carries an open
// handle, the record is purged, and every later fetch of the same id
// returns ErrTaskNotFound. Failed and pending views may be fetched
// repeatedly until the retention sweep reclaims them.
func (q *Queue) Fetch(ctx context.Context, taskID string) (*View, error) {
	v, ok := q.registry.view(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	switch v.Status {
	case StatusPending:
		if pos := q.registry.pendingPosition(taskID); pos > 0 {
			v.QueuePosition = pos
			if avg := q.registry.averageProcessing(); avg > 0 {
				v.EstimatedWait = time.Duration(pos) * avg
			}
		}
		return &v, nil

	case StatusSucceeded:
		handle, err := q.store.Take(ctx, taskID)
		if err != nil {
			if errors.Is(err, artifact.ErrArtifactNotFound) {
				// Lost the collection race to a concurrent fetch.
				return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
			}
			// Store trouble: keep the record so the caller can retry.
			return nil, fmt.Errorf("retrieving artifact for task %s: %w", taskID, err)
		}
		q.registry.remove(taskID)
		v.Artifact = handle
		q.logger.Info("task result collected",
			"task_id", taskID,
			"filename", handle.Ref.Filename,
			"size_bytes", handle.Ref.SizeBytes)
		return &v, nil

	default:
		return &v, nil
	}
}

// Stats returns a snapshot of queue occupancy, counters, and history.
func (q *Queue) Stats() Stats {
	return q.registry.stats(len(q.taskChan))
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping worker", "worker_id", id)
			return
		case taskID := <-q.taskChan:
			q.processTask(taskID, id)
		}
	}
}

// processTask drives one task from claim to a terminal status.
func (q *Queue) processTask(taskID string, workerID int) {
	claim, ok := q.registry.claim(taskID, q.nowFunc())
	if !ok {
		// Expired while waiting for a worker.
		q.logger.Debug("skipping task no longer pending", "task_id", taskID)
		q.updateDepth()
		return
	}

	logger := q.logger.With("task_id", taskID, "kind", claim.kind, "worker_id", workerID)
	logger.Info("processing task")
	q.updateDepth()
	if q.metrics != nil {
		q.metrics.TasksInFlight.Inc()
		defer q.metrics.TasksInFlight.Dec()
	}
	q.publish(q.ctx, events.NewTaskEvent(events.TypeTaskStarted, taskID, string(claim.kind), claim.owner))

	workspace := filepath.Join(q.cfg.WorkspaceRoot, "atlas-job-"+taskID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		logger.Error("failed to create task workspace", "error", err)
		q.recordFailure(taskID, claim, TaskError{
			Kind:    ErrorKindInternal,
			Message: "could not allocate job workspace",
		}, logger)
		return
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("failed to remove task workspace", "error", err)
		}
	}()

	outputs, err := q.runGenerator(generation.Job{
		TaskID:    taskID,
		Kind:      claim.kind,
		Request:   claim.request,
		Workspace: workspace,
	})
	if err != nil {
		logger.Error("task execution failed", "error", err)
		q.recordFailure(taskID, claim, TaskError{
			Kind:    ErrorKindJob,
			Message: err.Error(),
		}, logger)
		return
	}

	ref, err := q.persistOutputs(taskID, workspace, outputs)
	if err != nil {
		logger.Error("failed to persist task outputs", "error", err)
		q.recordFailure(taskID, claim, TaskError{
			Kind:    ErrorKindInternal,
			Message: "failed to persist generated outputs",
		}, logger)
		return
	}

	duration, ok := q.registry.finishSucceeded(taskID, *ref, q.nowFunc())
	if !ok {
		// The record expired mid-run; honor the expiry by discarding.
		logger.Info("discarding result of expired task")
		if err := q.store.Release(context.Background(), taskID); err != nil {
			logger.Error("failed to release discarded artifact", "error", err)
		}
		return
	}

	if q.metrics != nil {
		q.metrics.TasksCompleted.WithLabelValues("succeeded").Inc()
		q.metrics.TaskDuration.Observe(duration.Seconds())
	}
	ev := events.NewTaskEvent(events.TypeTaskSucceeded, taskID, string(claim.kind), claim.owner)
	ev.DurationSeconds = duration.Seconds()
	q.publish(q.ctx, ev)
	logger.Info("task completed",
		"duration", duration,
		"filename", ref.Filename,
		"size_bytes", ref.SizeBytes)
}

// runGenerator resolves and invokes the generator for a job, converting
// panics into job errors so one bad backend cannot take down a worker.
func (q *Queue) runGenerator(job generation.Job) (outputs []generation.Output, err error) {
	gen, lookupErr := q.generators.Lookup(job.Kind)
	if lookupErr != nil {
		return nil, lookupErr
	}

	defer func() {
		if rec := recover(); rec != nil {
			outputs = nil
			err = fmt.Errorf("%w: generator panic: %v", generation.ErrJobFailed, rec)
		}
	}()

	outputs, err = gen.Generate(q.ctx, job)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, generation.ErrNoOutputs
	}
	return outputs, nil
}

// persistOutputs moves the generator's outputs into the artifact store,
// bundling multi-file results into a single archive. Persistence uses a
// background context so a finished job is not lost to shutdown.
func (q *Queue) persistOutputs(taskID, workspace string, outputs []generation.Output) (*artifact.Ref, error) {
	ctx := context.Background()

	if len(outputs) == 1 {
		out := outputs[0]
		meta := artifact.Meta{Filename: out.Filename, ContentType: out.ContentType}
		if meta.Filename == "" {
			meta.Filename = filepath.Base(out.Path)
		}
		if meta.ContentType == "" {
			meta.ContentType = "application/octet-stream"
		}
		return q.store.Put(ctx, taskID, out.Path, meta)
	}

	paths := make([]string, len(outputs))
	for i, out := range outputs {
		paths[i] = out.Path
	}
	archivePath := filepath.Join(workspace, taskID+".zip")
	if err := artifact.BuildArchive(archivePath, paths); err != nil {
		return nil, fmt.Errorf("archiving task outputs: %w", err)
	}
	return q.store.Put(ctx, taskID, archivePath, artifact.Meta{
		Filename:    taskID + ".zip",
		ContentType: "application/zip",
	})
}

// recordFailure marks a running task failed and emits the bookkeeping.
func (q *Queue) recordFailure(taskID string, claim claimInfo, terr TaskError, logger *slog.Logger) {
	duration, ok := q.registry.finishFailed(taskID, terr, q.nowFunc())
	if !ok {
		logger.Debug("task no longer running, dropping failure record")
		return
	}
	if q.metrics != nil {
		q.metrics.TasksCompleted.WithLabelValues("failed").Inc()
		q.metrics.TaskDuration.Observe(duration.Seconds())
	}
	ev := events.NewTaskEvent(events.TypeTaskFailed, taskID, string(claim.kind), claim.owner)
	ev.DurationSeconds = duration.Seconds()
	ev.Error = terr.Message
	q.publish(q.ctx, ev)
}

// sweeper periodically reclaims tasks past their retention window.
func (q *Queue) sweeper() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	q.logger.Debug("starting expiry sweeper", "interval", q.cfg.SweepInterval)
	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping expiry sweeper")
			return
		case <-ticker.C:
			q.sweepOnce(q.nowFunc())
		}
	}
}

// sweepOnce runs one expiry pass: finished records past the retention
// TTL and stuck pending or running records are expired, their
// artifacts released, and orphaned blobs swept from the store.
func (q *Queue) sweepOnce(now time.Time) {
	finishedCutoff := now.Add(-q.cfg.RetentionTTL)
	stuckCutoff := now.Add(-q.cfg.StuckAfter)

	reclaimed := q.registry.expire(finishedCutoff, stuckCutoff, now)
	for _, ex := range reclaimed {
		if ex.hasArtifact {
			if err := q.store.Release(context.Background(), ex.id); err != nil {
				q.logger.Error("failed to release expired artifact",
					"task_id", ex.id, "error", err)
			}
		}
		if q.metrics != nil {
			q.metrics.TasksCompleted.WithLabelValues("expired").Inc()
		}
		q.publish(context.Background(), events.NewTaskEvent(events.TypeTaskExpired, ex.id, string(ex.kind), ex.owner))
		q.logger.Info("task expired",
			"task_id", ex.id,
			"kind", ex.kind,
			"last_status", ex.lastStatus)
	}

	if removed, err := q.store.Sweep(context.Background(), finishedCutoff); err != nil {
		q.logger.Error("artifact sweep failed", "error", err)
	} else if removed > 0 {
		q.logger.Info("swept orphaned artifacts", "count", removed)
	}
	q.updateDepth()
}

// publish forwards an event to the configured publisher, logging rather
// than propagating failures so delivery problems never affect tasks.
func (q *Queue) publish(ctx context.Context, e *events.TaskEvent) {
	if q.publisher == nil {
		return
	}
	if err := q.publisher.Publish(ctx, e); err != nil {
		q.logger.Warn("failed to publish task event",
			"event_type", e.Type,
			"task_id", e.TaskID,
			"error", err)
	}
}

func (q *Queue) updateDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.taskChan)))
	}
}
