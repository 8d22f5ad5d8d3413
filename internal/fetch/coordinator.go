// Package fetch turns selected artifacts into files in the local cache,
// consulting remote repositories according to their update policies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/resolution"
)

type Options struct {
	// Workers bounds concurrent fetches; 0 or 1 fetches inline.
	Workers int
	// Offline never contacts a remote.
	Offline bool
	// ForceUpdate re-checks every remote regardless of update policy.
	ForceUpdate bool
	// Clock evaluates update policies. Defaults to the wall clock.
	Clock clock.PassiveClock
}

// Coordinator resolves artifact files. It is safe for concurrent use.
type Coordinator struct {
	local     *repository.Local
	transport repository.Transport
	opts      Options
	exec      Executor
	group     singleflight.Group
}

func New(local *repository.Local, transport repository.Transport, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Coordinator{
		local:     local,
		transport: transport,
		opts:      opts,
		exec:      NewExecutor(opts.Workers),
	}
}

// ResolveFile fetches the file of a and records it on a.
func (c *Coordinator) ResolveFile(ctx context.Context, a *resolution.Artifact) error {
	file, err := c.resolve(ctx, a)
	if err != nil {
		return err
	}
	a.File, a.Resolved = file, true
	return nil
}

// ResolveRoot resolves the origin of result synchronously and places it
// first among the result's artifacts.
func (c *Coordinator) ResolveRoot(ctx context.Context, result *resolution.Result) *resolution.Artifact {
	origin := result.Origin()
	a := &resolution.Artifact{
		Coordinate: origin,
		Trail:      []artifact.Coordinate{origin},
		Remotes:    result.Repositories(),
	}
	result.PrependArtifact(a)
	file, err := c.resolve(ctx, a)
	if err != nil {
		c.record(result, err)
		return a
	}
	result.MarkResolved(a, file)
	return a
}

// ResolveAll fetches every artifact of list and records outcomes on result.
// When ctx ends first, a single interruption error is recorded and the
// result stops accepting late outcomes.
func (c *Coordinator) ResolveAll(ctx context.Context, list []*resolution.Artifact, result *resolution.Result) {
	logger := log.FromContext(ctx).WithValues("origin", result.Origin().String())
	start := time.Now()

	err := c.exec.Run(ctx, len(list), func(i int) {
		a := list[i]
		file, err := c.resolve(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.record(result, err)
			return
		}
		result.MarkResolved(a, file)
	})
	if err != nil {
		result.AddTransferError(&resolution.TransferError{
			Artifact:     result.Origin(),
			Repositories: result.Repositories(),
			Err:          fmt.Errorf("%w: %w", resolution.ErrInterrupted, err),
		})
		result.Seal()
		logger.Info("artifact resolution interrupted", "artifacts", len(list))
		return
	}
	logger.V(1).Info("resolved artifacts", "artifacts", len(list), "durationMs", time.Since(start).Milliseconds())
}

func (c *Coordinator) record(result *resolution.Result, err error) {
	var missing *resolution.NotFoundError
	if errors.As(err, &missing) {
		result.AddMissing(missing)
		return
	}
	var transfer *resolution.TransferError
	if errors.As(err, &transfer) {
		result.AddTransferError(transfer)
		return
	}
	result.AddTransferError(&resolution.TransferError{Artifact: result.Origin(), Err: err})
}

// resolve coalesces concurrent requests for the same cache slot.
func (c *Coordinator) resolve(ctx context.Context, a *resolution.Artifact) (string, error) {
	if a.Scope == artifact.ScopeSystem {
		return c.system(a)
	}
	key := c.local.PathFor(a.Coordinate)
	v, err, _ := c.group.Do(key, func() (any, error) {
		start := time.Now()
		defer func() { fetchDuration.Observe(time.Since(start).Seconds()) }()
		return c.fetch(ctx, a)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Coordinator) system(a *resolution.Artifact) (string, error) {
	info, err := os.Stat(a.SystemPath)
	if a.SystemPath == "" || err != nil || !info.Mode().IsRegular() {
		fetchTotal.WithLabelValues(outcomeMissing).Inc()
		reason := "system path " + a.SystemPath + " does not exist"
		if a.SystemPath == "" {
			reason = "system scope without a system path"
		}
		return "", &resolution.NotFoundError{Artifact: a.Coordinate, Trail: a.Trail, Reason: reason}
	}
	fetchTotal.WithLabelValues(outcomeSystem).Inc()
	return a.SystemPath, nil
}

func (c *Coordinator) fetch(ctx context.Context, a *resolution.Artifact) (string, error) {
	coord := a.Coordinate
	logger := log.FromContext(ctx).WithValues("artifact", coord.String())
	path := c.local.PathFor(coord)
	present := c.local.Exists(coord)
	snapshot := coord.IsSnapshot()

	switch {
	case c.opts.Offline:
		if present {
			fetchTotal.WithLabelValues(outcomeCached).Inc()
			return path, nil
		}
		fetchTotal.WithLabelValues(outcomeMissing).Inc()
		return "", &resolution.NotFoundError{Artifact: coord, Trail: a.Trail, Reason: "offline mode"}
	case c.opts.ForceUpdate:
		return c.update(ctx, logger, a, enabled(a.Remotes, snapshot), present)
	case present && (!snapshot || c.local.IsLocalCopy(coord)):
		fetchTotal.WithLabelValues(outcomeCached).Inc()
		return path, nil
	case present:
		return c.update(ctx, logger, a, c.due(coord, a.Remotes), true)
	}
	return c.update(ctx, logger, a, enabled(a.Remotes, snapshot), false)
}

// due returns the remotes whose snapshot policy asks for a re-check.
func (c *Coordinator) due(coord artifact.Coordinate, remotes []repository.Remote) []repository.Remote {
	last, err := c.local.LastModified(coord)
	if err != nil {
		return enabled(remotes, true)
	}
	now := c.opts.Clock.Now()
	var out []repository.Remote
	for _, r := range enabled(remotes, true) {
		if r.Snapshots.Update.UpdateRequired(last, now) {
			out = append(out, r)
		}
	}
	return out
}

// update asks remotes in order for a copy of a that is newer than the cached
// one, or for any copy when none is cached. The first remote that delivers
// wins.
func (c *Coordinator) update(ctx context.Context, logger logr.Logger, a *resolution.Artifact, remotes []repository.Remote, present bool) (string, error) {
	coord := a.Coordinate
	path := c.local.PathFor(coord)

	var since time.Time
	if present {
		if info, err := os.Stat(path); err == nil {
			since = info.ModTime()
		}
	}

	var failures []error
	for _, r := range remotes {
		changed, err := c.local.StoreVerified(coord, r.ID, func(w io.Writer) (bool, error) {
			if since.IsZero() {
				if err := c.transport.Fetch(ctx, coord, r, w); err != nil {
					return false, err
				}
				return true, nil
			}
			return c.transport.FetchIfNewer(ctx, coord, r, since, w)
		}, c.verifier(ctx, logger, coord, r))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			logger.V(2).Info("artifact not in repository", "repository", r.ID)
			continue
		case err != nil:
			logger.V(1).Info("artifact transfer failed", "repository", r.ID, "error", err.Error())
			failures = append(failures, fmt.Errorf("%s: %w", r.ID, err))
			continue
		case changed:
			outcome := outcomeDownloaded
			if present {
				outcome = outcomeUpdated
			}
			fetchTotal.WithLabelValues(outcome).Inc()
			logger.V(1).Info("stored artifact", "repository", r.ID, "outcome", outcome)
			return path, nil
		}
	}

	if present {
		// A cached copy stays usable when no remote has anything newer.
		if len(failures) > 0 {
			logger.Info("using cached artifact after failed update check", "error", utilerrors.NewAggregate(failures).Error())
		}
		fetchTotal.WithLabelValues(outcomeCached).Inc()
		return path, nil
	}
	if len(failures) > 0 {
		fetchTotal.WithLabelValues(outcomeFailed).Inc()
		return "", &resolution.TransferError{Artifact: coord, Trail: a.Trail, Repositories: remotes, Err: utilerrors.NewAggregate(failures)}
	}
	fetchTotal.WithLabelValues(outcomeMissing).Inc()
	nf := &resolution.NotFoundError{Artifact: coord, Trail: a.Trail, Repositories: remotes}
	if len(remotes) == 0 {
		nf.Reason = "no repository is enabled for it"
	}
	return "", nf
}

// verifier checks downloads from r against the checksum r publishes, as
// r's checksum policy for coord asks.
func (c *Coordinator) verifier(ctx context.Context, logger logr.Logger, coord artifact.Coordinate, r repository.Remote) func(string) error {
	policy := r.PolicyFor(coord.IsSnapshot()).Checksum
	if policy == repository.ChecksumIgnore {
		return nil
	}
	return func(actual string) error {
		err := repository.VerifyChecksum(ctx, c.transport, coord, r, actual)
		switch {
		case err == nil:
			return nil
		case policy == repository.ChecksumFail:
			checksumFailures.WithLabelValues(string(repository.ChecksumFail)).Inc()
			return err
		}
		checksumFailures.WithLabelValues(string(repository.ChecksumWarn)).Inc()
		logger.Info("keeping download despite checksum failure", "repository", r.ID, "error", err.Error())
		return nil
	}
}

func enabled(remotes []repository.Remote, snapshot bool) []repository.Remote {
	var out []repository.Remote
	for _, r := range remotes {
		if r.PolicyFor(snapshot).Enabled {
			out = append(out, r)
		}
	}
	return out
}
