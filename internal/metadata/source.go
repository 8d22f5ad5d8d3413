// Package metadata defines how the collector learns about an artifact's own
// dependencies, and ships in-memory and caching implementations.
package metadata

import (
	"context"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// Declaration is one dependency as declared by an artifact's descriptor.
// Coordinate.Version may be a soft version or a range spec.
type Declaration struct {
	Coordinate artifact.Coordinate
	Scope      artifact.Scope
	Optional   bool
	Exclusions []artifact.Exclusion
	SystemPath string
}

// Descriptor is the already-parsed dependency information of one artifact.
type Descriptor struct {
	Dependencies []Declaration
	// Managed are the artifact's own dependency-management entries, applied
	// to its subtree below any management inherited from ancestors.
	Managed artifact.ManagedVersions
	// Repositories are additional remotes declared by the artifact.
	Repositories []repository.Remote
}

// Source retrieves artifact descriptors and the versions available for an
// artifact. Errors are returned as-is; callers record them.
type Source interface {
	Retrieve(ctx context.Context, c artifact.Coordinate, remotes []repository.Remote) (Descriptor, error)
	AvailableVersions(ctx context.Context, c artifact.Coordinate, remotes []repository.Remote) ([]version.Version, error)
}
