package task

import (
	"time"

	"github.com/phrazzld/atlas-api/internal/generation"
)

// Stats is a point-in-time summary of the queue for status reporting.
type Stats struct {
	// Depth is the number of submissions buffered ahead of the workers.
	Depth int

	// Pending and Running count live records by status.
	Pending int
	Running int

	// Lifetime outcome counters.
	Succeeded uint64
	Failed    uint64
	Expired   uint64

	// AvgProcessing is the mean run duration across completed tasks,
	// zero before the first completion.
	AvgProcessing time.Duration

	// History lists recently finished tasks, newest first.
	History []HistoryEntry
}

// HistoryEntry records one finished task for the status report.
type HistoryEntry struct {
	TaskID     string
	Kind       generation.Kind
	Status     Status
	Duration   time.Duration
	FinishedAt time.Time
}
