package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/atlas-api/internal/safepath"
)

// DiskStore keeps artifact blobs as flat files under a root directory, with
// the index held in memory. Blobs from a previous process are unreachable
// (their index died with the process) and are cleared at startup.
type DiskStore struct {
	root  string
	index *memIndex
}

// NewDiskStore creates the root directory if needed and removes any stale
// blobs left behind by an earlier run.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading artifact root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			_ = os.Remove(filepath.Join(root, e.Name()))
		}
	}
	return &DiskStore{root: root, index: newMemIndex()}, nil
}

func (s *DiskStore) Put(ctx context.Context, taskID, srcPath string, meta Meta) (*Ref, error) {
	if err := safepath.CheckFilename(meta.Filename); err != nil {
		return nil, err
	}
	if err := s.index.reserve(taskID); err != nil {
		return nil, err
	}

	dst := filepath.Join(s.root, taskID+filepath.Ext(meta.Filename))
	size, err := moveFile(srcPath, dst)
	if err != nil {
		s.index.cancel(taskID)
		return nil, fmt.Errorf("storing artifact for task %s: %w", taskID, err)
	}

	ref := Ref{
		TaskID:      taskID,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		SizeBytes:   size,
		Location:    dst,
		StoredAt:    time.Now(),
	}
	s.index.commit(taskID, ref, dst)
	return &ref, nil
}

func (s *DiskStore) Take(ctx context.Context, taskID string) (*Handle, error) {
	e, ok := s.index.take(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, taskID)
	}
	f, err := os.Open(e.key)
	if err != nil {
		s.index.reinsert(taskID, e)
		return nil, fmt.Errorf("opening artifact for task %s: %w", taskID, err)
	}
	return &Handle{Ref: e.ref, rc: &removeOnClose{f: f, path: e.key}}, nil
}

func (s *DiskStore) Release(ctx context.Context, taskID string) error {
	e, ok := s.index.drop(taskID)
	if !ok {
		return nil
	}
	if err := os.Remove(e.key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing artifact for task %s: %w", taskID, err)
	}
	return nil
}

func (s *DiskStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	victims := s.index.expire(olderThan)
	var errs []error
	for _, e := range victims {
		if err := os.Remove(e.key); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return len(victims), errors.Join(errs...)
}

func (s *DiskStore) Len() int {
	return s.index.len()
}

// removeOnClose deletes the blob once the caller finishes streaming it.
type removeOnClose struct {
	f    *os.File
	path string
}

func (r *removeOnClose) Read(p []byte) (int, error) {
	return r.f.Read(p)
}

func (r *removeOnClose) Close() error {
	closeErr := r.f.Close()
	removeErr := os.Remove(r.path)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

// moveFile renames src to dst, falling back to copy-and-remove across
// filesystems. Returns the stored size.
func moveFile(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(src, dst); err == nil {
		return info.Size(), nil
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	_ = os.Remove(src)
	return n, nil
}
