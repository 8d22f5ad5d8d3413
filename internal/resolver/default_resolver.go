package resolver

import (
	"context"
	"time"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/collector"
	"github.com/bayleafwalker/depresolve/internal/fetch"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/resolution"
)

// DefaultResolver collects with the collector package and fetches through a
// fetch.Coordinator over the local cache.
type DefaultResolver struct {
	source    metadata.Source
	local     *repository.Local
	transport repository.Transport
	workers   int
	clock     clock.PassiveClock
}

type Option func(*DefaultResolver)

// WithWorkers bounds concurrent fetches. 1 fetches inline; the default is
// fetch.DefaultWorkers.
func WithWorkers(n int) Option {
	return func(r *DefaultResolver) { r.workers = n }
}

// WithClock sets the clock used to evaluate update policies.
func WithClock(clk clock.PassiveClock) Option {
	return func(r *DefaultResolver) { r.clock = clk }
}

// WithMetadataCache keeps up to size descriptors and version lists for ttl.
func WithMetadataCache(size int, ttl time.Duration) Option {
	return func(r *DefaultResolver) { r.source = metadata.NewCached(r.source, size, ttl) }
}

func NewDefault(source metadata.Source, local *repository.Local, transport repository.Transport, opts ...Option) *DefaultResolver {
	r := &DefaultResolver{
		source:    source,
		local:     local,
		transport: transport,
		workers:   fetch.DefaultWorkers,
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DefaultResolver) Collect(ctx context.Context, req Request) (*resolution.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return collector.Collect(ctx, collector.Request{
		Root:                req.Root,
		Dependencies:        req.Dependencies,
		Managed:             req.Managed,
		Repositories:        req.Repositories,
		Source:              r.source,
		Filter:              req.CollectionFilter,
		Exclusions:          req.Exclusions,
		ResolveTransitively: req.ResolveTransitively,
		Listeners:           req.Listeners,
	}), nil
}

func (r *DefaultResolver) Resolve(ctx context.Context, req Request) (*resolution.Result, error) {
	logger := log.FromContext(ctx).WithValues("root", req.Root.String())

	result, err := r.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.HasStructuralErrors() {
		logger.V(1).Info(
			"skipping fetch after collection errors",
			"metadata", result.Count(resolution.KindMetadata),
			"versionRange", result.Count(resolution.KindVersionRange),
			"circular", result.Count(resolution.KindCircular),
		)
		return result, nil
	}

	if req.ResolutionFilter != nil {
		result.Retain(func(a *resolution.Artifact) bool {
			return req.ResolutionFilter.Include(a.Coordinate, a.Scope)
		})
	}
	selected := result.Artifacts()

	coordinator := fetch.New(r.local, r.transport, fetch.Options{
		Workers:     r.workers,
		Offline:     req.Offline,
		ForceUpdate: req.ForceUpdate,
		Clock:       r.clock,
	})
	if req.ResolveRoot {
		coordinator.ResolveRoot(ctx, result)
	}
	coordinator.ResolveAll(ctx, selected, result)

	logger.V(1).Info(
		"resolved dependencies",
		"artifacts", len(selected),
		"missing", len(result.Missing()),
		"transfer", result.Count(resolution.KindTransfer),
	)
	return result, nil
}
