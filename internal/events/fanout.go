package events

import (
	"context"
	"log/slog"
	"sync"
)

// Fanout delivers each event to every registered publisher. A failing sink
// never blocks the others; the first error is returned after all sinks ran.
type Fanout struct {
	publishers []Publisher
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewFanout creates a Fanout with no sinks.
func NewFanout(logger *slog.Logger) *Fanout {
	return &Fanout{
		publishers: make([]Publisher, 0),
		logger:     logger.With("component", "event_fanout"),
	}
}

// Register adds a sink. Call during wiring, before events flow.
func (f *Fanout) Register(p Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishers = append(f.publishers, p)
	f.logger.Debug("registered event publisher", "publisher_count", len(f.publishers))
}

// Publish delivers event to every sink.
func (f *Fanout) Publish(ctx context.Context, event *TaskEvent) error {
	f.mu.RLock()
	publishers := make([]Publisher, len(f.publishers))
	copy(publishers, f.publishers)
	f.mu.RUnlock()

	if len(publishers) == 0 {
		return nil
	}

	var firstErr error
	for i, p := range publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Error("event publisher failed",
				"error", err,
				"publisher_index", i,
				"event_id", event.ID,
				"event_type", event.Type,
				"task_id", event.TaskID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
