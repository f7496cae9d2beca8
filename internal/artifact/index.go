package artifact

import (
	"fmt"
	"sync"
	"time"
)

// entry is one indexed artifact. key is backend-specific (a path on disk, an
// object key on S3). pending marks a slot reserved by an in-flight Put.
type entry struct {
	ref     Ref
	key     string
	pending bool
}

// memIndex is the in-memory artifact index shared by both backends. The
// index, not the blob plane, is what makes Take atomic: the entry is removed
// under the lock before any I/O happens.
type memIndex struct {
	mu sync.Mutex
	m  map[string]*entry
}

func newMemIndex() *memIndex {
	return &memIndex{m: make(map[string]*entry)}
}

// reserve claims the slot for taskID. Fails if an artifact (or an in-flight
// Put) already holds it.
func (ix *memIndex) reserve(taskID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.m[taskID]; ok {
		return fmt.Errorf("%w: %s", ErrArtifactExists, taskID)
	}
	ix.m[taskID] = &entry{pending: true}
	return nil
}

// commit fills a reserved slot with the stored artifact.
func (ix *memIndex) commit(taskID string, ref Ref, key string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.m[taskID] = &entry{ref: ref, key: key}
}

// take removes and returns the entry for taskID. Pending slots are invisible.
func (ix *memIndex) take(taskID string) (*entry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.m[taskID]
	if !ok || e.pending {
		return nil, false
	}
	delete(ix.m, taskID)
	return e, true
}

// reinsert restores an entry whose blob could not be opened after take.
func (ix *memIndex) reinsert(taskID string, e *entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.m[taskID] = e
}

// cancel frees a reserved slot after a failed Put.
func (ix *memIndex) cancel(taskID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.m, taskID)
}

// drop removes the committed entry for taskID.
func (ix *memIndex) drop(taskID string) (*entry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.m[taskID]
	if !ok || e.pending {
		return nil, false
	}
	delete(ix.m, taskID)
	return e, true
}

// expire removes and returns every committed entry stored before olderThan.
func (ix *memIndex) expire(olderThan time.Time) []*entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var victims []*entry
	for taskID, e := range ix.m {
		if !e.pending && e.ref.StoredAt.Before(olderThan) {
			victims = append(victims, e)
			delete(ix.m, taskID)
		}
	}
	return victims
}

func (ix *memIndex) len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.m)
}
