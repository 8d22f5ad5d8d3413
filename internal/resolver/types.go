package resolver

import (
	"fmt"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/listener"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

// Request is the caller-facing description of one resolution.
type Request struct {
	Root artifact.Coordinate
	// Dependencies are the root's direct declarations; nil reads them from
	// the root's descriptor.
	Dependencies []metadata.Declaration
	Managed      artifact.ManagedVersions
	Exclusions   artifact.Exclusions
	Repositories []repository.Remote

	Offline     bool
	ForceUpdate bool
	// ResolveRoot also fetches the root artifact and lists it first.
	ResolveRoot         bool
	ResolveTransitively bool

	// CollectionFilter prunes the tree while it is built.
	CollectionFilter artifact.Filter
	// ResolutionFilter selects which collected artifacts are fetched.
	ResolutionFilter artifact.Filter

	Listeners []listener.Listener
}

// Validate reports requests that cannot be processed at all.
func (r Request) Validate() error {
	if err := r.Root.Validate(); err != nil {
		return fmt.Errorf("%w: root: %w", ErrInvalidRequest, err)
	}
	for _, remote := range r.Repositories {
		if err := remote.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	for _, d := range r.Dependencies {
		if err := d.Coordinate.Validate(); err != nil {
			return fmt.Errorf("%w: dependency: %w", ErrInvalidRequest, err)
		}
		if !d.Scope.Valid() {
			return fmt.Errorf("%w: dependency %s: unknown scope %q", ErrInvalidRequest, d.Coordinate, d.Scope)
		}
	}
	return nil
}
