// Package artifact stores the blobs produced by completed generation tasks.
//
// An artifact is written once when its task finishes and read at most once:
// Take atomically removes the index entry before handing back the blob, so
// two concurrent fetches for the same task can never both succeed. Artifacts
// whose caller never returns are reclaimed by Sweep.
package artifact

import (
	"context"
	"io"
	"time"
)

// Meta describes an artifact at Put time.
type Meta struct {
	// Filename is the download name offered to the caller. Must pass
	// safepath.CheckFilename.
	Filename string

	// ContentType is the MIME type served with the blob.
	ContentType string
}

// Ref identifies a stored artifact without carrying its bytes.
type Ref struct {
	TaskID      string
	Filename    string
	ContentType string
	SizeBytes   int64

	// Location is backend-specific: a filesystem path or an object URL.
	Location string

	StoredAt time.Time
}

// Handle streams a taken artifact. Closing it releases the underlying blob;
// after Close the artifact is gone.
type Handle struct {
	Ref Ref

	rc io.ReadCloser
}

func (h *Handle) Read(p []byte) (int, error) {
	return h.rc.Read(p)
}

func (h *Handle) Close() error {
	return h.rc.Close()
}

// Store is the artifact lifecycle contract shared by the disk and S3
// backends.
type Store interface {
	// Put persists the file at srcPath as the artifact for taskID. The
	// source file is consumed. A second Put for the same task fails with
	// ErrArtifactExists.
	Put(ctx context.Context, taskID, srcPath string, meta Meta) (*Ref, error)

	// Take atomically removes the artifact for taskID from the index and
	// returns a handle to its bytes. Exactly one concurrent caller wins;
	// the rest see ErrArtifactNotFound. A failure to open the blob does
	// not consume the entry.
	Take(ctx context.Context, taskID string) (*Handle, error)

	// Release discards the artifact for taskID if present. Releasing an
	// unknown task is not an error.
	Release(ctx context.Context, taskID string) error

	// Sweep removes artifacts stored before olderThan and reports how many
	// were removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)

	// Len reports how many artifacts are currently stored.
	Len() int
}
