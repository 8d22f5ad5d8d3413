package resolver

import (
	"context"

	"github.com/bayleafwalker/depresolve/internal/resolution"
)

// Resolver computes the dependency closure of a root artifact.
//
// The returned error is reserved for requests that cannot be processed at
// all; failures of individual artifacts are recorded on the result. Use a
// resolution.ErrorHandler to turn a result into a terminal error.
type Resolver interface {
	// Collect builds and mediates the dependency tree without fetching.
	Collect(ctx context.Context, req Request) (*resolution.Result, error)
	// Resolve collects and then fetches every selected artifact.
	Resolve(ctx context.Context, req Request) (*resolution.Result, error)
}
