package generation

import (
	"context"
	"encoding/json"
	"sort"
)

// Kind selects which generator variant runs a job.
type Kind string

// Generation kinds, one per heavy route.
const (
	KindTerrain    Kind = "terrain"
	KindMesh       Kind = "mesh"
	KindTexture    Kind = "texture"
	KindVegetation Kind = "vegetation"
	KindSatellite  Kind = "satellite"
	KindBundle     Kind = "bundle"
)

// Job is one unit of generation work. The request payload is opaque here;
// it was validated at the HTTP boundary.
type Job struct {
	// TaskID identifies the owning task, used for workspace scoping and logs.
	TaskID string

	// Kind selects the generator variant.
	Kind Kind

	// Request carries the validated job parameters.
	Request json.RawMessage

	// Workspace is a private directory the generator writes its outputs
	// into. It is discarded after the outputs are persisted.
	Workspace string
}

// Output is one file a generator produced inside its workspace.
type Output struct {
	// Path is the absolute location of the produced file.
	Path string

	// Filename is the download name for the file.
	Filename string

	// ContentType is the MIME type served with the file.
	ContentType string
}

// Generator runs one generation job. Implementations block until the job
// finishes or ctx is cancelled, and must be safe for concurrent use: the
// worker pool calls one shared instance from several goroutines.
type Generator interface {
	Generate(ctx context.Context, job Job) ([]Output, error)
}

// Registry maps kinds to generator variants. Register everything during
// wiring; the map is read-only afterwards and needs no locking.
type Registry struct {
	generators map[Kind]Generator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[Kind]Generator)}
}

// Register binds kind to g, replacing any previous binding.
func (r *Registry) Register(kind Kind, g Generator) {
	r.generators[kind] = g
}

// Lookup returns the generator for kind or ErrKindUnknown.
func (r *Registry) Lookup(kind Kind) (Generator, error) {
	g, ok := r.generators[kind]
	if !ok {
		return nil, ErrKindUnknown
	}
	return g, nil
}

// Kinds lists the registered kinds in stable order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.generators))
	for k := range r.generators {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
