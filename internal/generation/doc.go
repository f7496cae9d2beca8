// Package generation defines the contract between the task queue and the
// geospatial rendering backends. The queue stays domain-agnostic: it hands a
// Job to whichever Generator is registered for the job's kind and persists
// the outputs that come back. The actual rendering lives behind the
// Generator interface (see internal/platform/rendertool for the exec-based
// implementation).
package generation
