// Package resolution holds the outcome of collecting and fetching a
// dependency tree: the selected artifacts, their files, and every error
// recorded along the way.
package resolution

import (
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/graph"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

// Artifact is one selected dependency. File and Resolved are filled in by
// the fetch step.
type Artifact struct {
	Coordinate artifact.Coordinate
	Scope      artifact.Scope
	Depth      int
	// Trail runs from the root down to this artifact, inclusive.
	Trail      []artifact.Coordinate
	Remotes    []repository.Remote
	SystemPath string

	File     string
	Resolved bool
}

// Result is safe for concurrent use.
type Result struct {
	mu sync.Mutex

	origin       artifact.Coordinate
	artifacts    []*Artifact
	missing      []*NotFoundError
	metadata     []*MetadataError
	ranges       []*VersionRangeError
	circular     []*CycleError
	transfer     []*TransferError
	repositories []repository.Remote
	graph        *graph.Graph
	sealed       bool
}

func NewResult(origin artifact.Coordinate) *Result {
	return &Result{origin: origin}
}

func (r *Result) Origin() artifact.Coordinate { return r.origin }

func (r *Result) SetGraph(g *graph.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph = g
}

func (r *Result) Graph() *graph.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph
}

// AddRepositories records remotes that were searched, deduplicated by id.
func (r *Result) AddRepositories(remotes ...repository.Remote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories = repository.Merge(r.repositories, remotes...)
}

func (r *Result) Repositories() []repository.Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repository.Remote(nil), r.repositories...)
}

func (r *Result) AddArtifact(a *Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, a)
}

// PrependArtifact places a in front of every artifact added so far.
func (r *Result) PrependArtifact(a *Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append([]*Artifact{a}, r.artifacts...)
}

// Retain drops every artifact for which keep returns false.
func (r *Result) Retain(keep func(a *Artifact) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.artifacts[:0]
	for _, a := range r.artifacts {
		if keep(a) {
			out = append(out, a)
		}
	}
	r.artifacts = out
}

// Artifacts returns the artifacts in insertion order.
func (r *Result) Artifacts() []*Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Artifact(nil), r.artifacts...)
}

// Coordinates is a shorthand for the coordinates of Artifacts.
func (r *Result) Coordinates() []artifact.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]artifact.Coordinate, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		out = append(out, a.Coordinate)
	}
	return out
}

// MarkResolved records the file of a. It is a no-op once r is sealed.
func (r *Result) MarkResolved(a *Artifact, file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	a.File, a.Resolved = file, true
}

// Seal stops r from accepting fetch outcomes. Work still running after an
// interruption can then no longer touch the result or its artifacts.
func (r *Result) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Result) AddMissing(e *NotFoundError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.missing = append(r.missing, e)
}

func (r *Result) AddMetadataError(e *MetadataError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = append(r.metadata, e)
}

func (r *Result) AddVersionRangeError(e *VersionRangeError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, e)
}

func (r *Result) AddCycleError(e *CycleError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circular = append(r.circular, e)
}

func (r *Result) AddTransferError(e *TransferError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.transfer = append(r.transfer, e)
}

func (r *Result) Missing() []*NotFoundError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*NotFoundError(nil), r.missing...)
}

func (r *Result) MetadataErrors() []*MetadataError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*MetadataError(nil), r.metadata...)
}

func (r *Result) VersionRangeErrors() []*VersionRangeError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*VersionRangeError(nil), r.ranges...)
}

func (r *Result) CycleErrors() []*CycleError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*CycleError(nil), r.circular...)
}

func (r *Result) TransferErrors() []*TransferError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*TransferError(nil), r.transfer...)
}

// HasStructuralErrors reports metadata, version-range or cycle errors, the
// kinds that stop a resolution before anything is fetched.
func (r *Result) HasStructuralErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metadata) > 0 || len(r.ranges) > 0 || len(r.circular) > 0
}

// HasErrors reports whether anything at all went wrong.
func (r *Result) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metadata)+len(r.ranges)+len(r.circular)+len(r.transfer)+len(r.missing) > 0
}

// Count returns the number of recorded errors of kind k.
func (r *Result) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch k {
	case KindMetadata:
		return len(r.metadata)
	case KindVersionRange:
		return len(r.ranges)
	case KindCircular:
		return len(r.circular)
	case KindTransfer:
		return len(r.transfer)
	}
	return 0
}

// Err aggregates every recorded error, or returns nil.
func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, e := range r.ranges {
		errs = append(errs, e)
	}
	for _, e := range r.metadata {
		errs = append(errs, e)
	}
	for _, e := range r.circular {
		errs = append(errs, e)
	}
	for _, e := range r.transfer {
		errs = append(errs, e)
	}
	for _, e := range r.missing {
		errs = append(errs, e)
	}
	return utilerrors.NewAggregate(errs)
}
