package resolution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

var (
	ErrCircularDependency = errors.New("circular dependency")
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrMetadata           = errors.New("unable to retrieve dependency metadata")
	ErrTransfer           = errors.New("unable to transfer artifact")
	ErrInterrupted        = errors.New("resolution interrupted")
)

// Kind partitions recorded errors.
type Kind int

const (
	KindMetadata Kind = iota
	KindVersionRange
	KindCircular
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindVersionRange:
		return "version-range"
	case KindCircular:
		return "circular"
	case KindTransfer:
		return "transfer"
	}
	return "unknown"
}

func formatTrail(trail []artifact.Coordinate) string {
	if len(trail) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nPath to dependency:\n")
	for i, c := range trail {
		fmt.Fprintf(&b, "\t%d) %s\n", i+1, c)
	}
	return b.String()
}

func formatRemotes(remotes []repository.Remote) string {
	if len(remotes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nfrom the specified remote repositories:\n")
	for i, r := range remotes {
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "  %s", r)
	}
	b.WriteString("\n")
	return b.String()
}

// MetadataError records a descriptor or version list that could not be
// retrieved. The subtree below Artifact was not expanded.
type MetadataError struct {
	Artifact     artifact.Coordinate
	Trail        []artifact.Coordinate
	Repositories []repository.Remote
	Err          error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s for %s: %v%s%s", ErrMetadata, e.Artifact, e.Err, formatTrail(e.Trail), formatRemotes(e.Repositories))
}

func (e *MetadataError) Unwrap() []error { return []error{ErrMetadata, e.Err} }

// VersionRangeError records an invalid version or range, or a conflict key
// whose constraints leave no usable version.
type VersionRangeError struct {
	Artifact artifact.Coordinate
	Trail    []artifact.Coordinate
	Range    string
	// Available lists the candidate versions considered, if any.
	Available []string
	Err       error
}

func (e *VersionRangeError) Error() string {
	msg := fmt.Sprintf("%s: range %s: %v", e.Artifact.Key(), e.Range, e.Err)
	if len(e.Available) > 0 {
		msg += " (available: " + strings.Join(e.Available, ", ") + ")"
	}
	return msg + formatTrail(e.Trail)
}

func (e *VersionRangeError) Unwrap() error { return e.Err }

// CycleError records an artifact that occurs in its own dependency trail.
type CycleError struct {
	Artifact artifact.Coordinate
	Trail    []artifact.Coordinate
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s%s", ErrCircularDependency, e.Artifact, formatTrail(e.Trail))
}

func (e *CycleError) Unwrap() error { return ErrCircularDependency }

// NotFoundError records an artifact file missing from the cache and every
// remote, or a missing system-scope file.
type NotFoundError struct {
	Artifact     artifact.Coordinate
	Trail        []artifact.Coordinate
	Repositories []repository.Remote
	Reason       string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrArtifactNotFound, e.Artifact)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg + formatTrail(e.Trail) + formatRemotes(e.Repositories)
}

func (e *NotFoundError) Unwrap() error { return ErrArtifactNotFound }

// TransferError records an I/O or transport failure distinct from absence.
type TransferError struct {
	Artifact     artifact.Coordinate
	Trail        []artifact.Coordinate
	Repositories []repository.Remote
	Err          error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v%s%s", ErrTransfer, e.Artifact, e.Err, formatTrail(e.Trail), formatRemotes(e.Repositories))
}

func (e *TransferError) Unwrap() []error { return []error{ErrTransfer, e.Err} }

// MultipleNotFoundError aggregates every missing artifact of a resolution.
type MultipleNotFoundError struct {
	Origin       artifact.Coordinate
	Missing      []*NotFoundError
	Resolved     []artifact.Coordinate
	Repositories []repository.Remote
}

func (e *MultipleNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "missing:\n----------\n")
	for i, m := range e.Missing {
		fmt.Fprintf(&b, "%d) %s", i+1, m.Artifact)
		if m.Reason != "" {
			fmt.Fprintf(&b, " (%s)", m.Reason)
		}
		b.WriteString("\n")
		for j, c := range m.Trail {
			fmt.Fprintf(&b, "\t%d) %s\n", j+1, c)
		}
	}
	fmt.Fprintf(&b, "----------\n%d required artifact", len(e.Missing))
	if len(e.Missing) != 1 {
		b.WriteString("s are")
	} else {
		b.WriteString(" is")
	}
	fmt.Fprintf(&b, " missing.\n\nfor artifact:\n  %s\n", e.Origin)
	b.WriteString(formatRemotes(e.Repositories))
	return b.String()
}

func (e *MultipleNotFoundError) Unwrap() []error {
	out := make([]error, 0, len(e.Missing))
	for _, m := range e.Missing {
		out = append(out, m)
	}
	return out
}
