// Package collector builds the dependency tree of a root artifact and
// mediates conflicts between multiple occurrences of the same artifact.
//
// Collection is depth-first in declaration order and single-threaded; the
// same request against the same metadata always yields the same tree, the
// same events and the same artifact order.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/graph"
	"github.com/bayleafwalker/depresolve/internal/listener"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/resolution"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// Request describes one collection.
type Request struct {
	Root artifact.Coordinate
	// Dependencies are the root's direct declarations. When nil they are
	// read from the root's own descriptor.
	Dependencies []metadata.Declaration
	// Managed overrides versions and scopes across the whole tree. Its
	// entries win over those of the root descriptor.
	Managed      artifact.ManagedVersions
	Repositories []repository.Remote
	Source       metadata.Source
	// Filter rejects nodes from the result; rejected nodes stay in the
	// graph, marked filtered, and are never expanded.
	Filter     artifact.Filter
	Exclusions artifact.Exclusions
	// ResolveTransitively expands the direct declarations. When false only
	// the root's direct declarations are attached.
	ResolveTransitively bool
	Listeners           []listener.Listener
}

type collector struct {
	ctx    context.Context
	req    Request
	log    logr.Logger
	events listener.Listener
	g      *graph.Graph
	result *resolution.Result

	// live holds, per conflict key, the node currently selected.
	live      map[artifact.Key]graph.NodeID
	available map[artifact.Key][]version.Version

	interrupted bool
}

// Collect builds the dependency tree for req. Per-node failures are
// recorded on the returned result; collection never aborts early except on
// context cancellation.
func Collect(ctx context.Context, req Request) *resolution.Result {
	start := time.Now()
	logger := log.FromContext(ctx).WithValues("root", req.Root.String())

	c := &collector{
		ctx:       ctx,
		req:       req,
		log:       logger,
		events:    listener.Multi(req.Listeners),
		result:    resolution.NewResult(req.Root),
		live:      map[artifact.Key]graph.NodeID{},
		available: map[artifact.Key][]version.Version{},
	}
	c.run()

	collectNodesTotal.Add(float64(c.g.Len() - 1))
	collectDuration.Observe(time.Since(start).Seconds())
	logger.V(1).Info(
		"collected dependency graph",
		"nodes", c.g.Len(),
		"artifacts", len(c.result.Artifacts()),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return c.result
}

func (c *collector) run() {
	req := c.req
	root := graph.Node{
		Artifact:   req.Root,
		Exclusions: req.Exclusions,
		Remotes:    req.Repositories,
		Managed:    req.Managed,
		Expanded:   true,
	}
	c.g = graph.New(root)
	c.result.SetGraph(c.g)
	c.result.AddRepositories(req.Repositories...)

	if req.Source == nil {
		c.result.AddMetadataError(&resolution.MetadataError{
			Artifact: req.Root,
			Trail:    []artifact.Coordinate{req.Root},
			Err:      errors.New("no metadata source configured"),
		})
		return
	}

	decls := req.Dependencies
	rootNode := c.g.Root()
	if decls == nil {
		desc, err := req.Source.Retrieve(c.ctx, req.Root, req.Repositories)
		if err != nil {
			c.metadataFailure(rootNode, err)
			return
		}
		decls = desc.Dependencies
		rootNode.Managed = req.Managed.Merge(desc.Managed)
		rootNode.Remotes = repository.Merge(req.Repositories, desc.Repositories...)
		c.result.AddRepositories(desc.Repositories...)
	}
	rootNode.Managed = rootNode.Managed.Without(req.Root.Key())

	c.expand(rootNode.ID, decls)
	c.reselect()
	c.aggregate()
}

// expand attaches decls below parent and recurses into every child that
// survives mediation.
func (c *collector) expand(parent graph.NodeID, decls []metadata.Declaration) {
	for _, d := range decls {
		if c.stopped() {
			return
		}
		id, ok := c.attach(parent, d)
		if !ok {
			continue
		}
		n := c.g.Node(id)
		if !n.Active {
			continue
		}
		c.fire(listener.Event{Kind: listener.IncludeArtifact, Artifact: n.Artifact, Scope: n.Scope, Depth: n.Depth})
		if c.req.ResolveTransitively && n.Scope != artifact.ScopeSystem {
			c.visit(id)
		}
	}
}

// attach creates the node for d below parent. It reports false when d was
// dropped without a node.
func (c *collector) attach(parentID graph.NodeID, d metadata.Declaration) (graph.NodeID, bool) {
	parent := c.g.Node(parentID)
	coord := d.Coordinate
	if coord.Type == "" {
		coord.Type = artifact.DefaultType
	}

	if parent.Exclusions.Excludes(coord) {
		return graph.None, false
	}
	if d.Optional && !parent.IsRoot() {
		return graph.None, false
	}

	declared := d.Scope
	exclusions := parent.Exclusions.With(d.Exclusions...)
	systemPath := d.SystemPath
	if m, ok := parent.Managed[coord.Key()]; ok {
		managed := coord
		direct := parent.IsRoot()
		if m.Version != "" && (!direct || coord.Version == "") {
			managed.Version = m.Version
		}
		if m.Scope != artifact.ScopeUnset && (!direct || declared == artifact.ScopeUnset) {
			declared = m.Scope
		}
		exclusions = exclusions.With(m.Exclusions...)
		if m.SystemPath != "" {
			systemPath = m.SystemPath
		}
		if managed.Version != coord.Version || declared != d.Scope {
			c.fire(listener.Event{Kind: listener.ManageArtifact, Artifact: coord, Replacement: managed, Scope: declared, Depth: parent.Depth + 1})
		}
		coord = managed
	}

	scope, transitive := artifact.Derive(declared, parent.Scope)
	if !transitive {
		return graph.None, false
	}

	c.fire(listener.Event{Kind: listener.TestArtifact, Artifact: coord, Scope: scope, Depth: parent.Depth + 1})

	trail := append(c.g.Trail(parentID), coord)
	if c.g.InTrail(parentID, coord.Key()) {
		c.result.AddCycleError(&resolution.CycleError{Artifact: coord, Trail: trail})
		conflictsTotal.WithLabelValues(conflictCycle).Inc()
		c.fire(listener.Event{Kind: listener.OmitForCycle, Artifact: coord, Scope: scope, Depth: parent.Depth + 1})
		return graph.None, false
	}

	if err := coord.Validate(); err != nil {
		c.result.AddMetadataError(&resolution.MetadataError{Artifact: coord, Trail: trail, Repositories: parent.Remotes, Err: err})
		return graph.None, false
	}
	rng, err := version.ParseRange(coord.Version)
	if err != nil {
		c.result.AddVersionRangeError(&resolution.VersionRangeError{Artifact: coord, Trail: trail, Range: coord.Version, Err: err})
		return graph.None, false
	}

	node := graph.Node{
		Artifact:      coord,
		Range:         rng,
		DeclaredScope: declared,
		Scope:         scope,
		Optional:      d.Optional,
		SystemPath:    systemPath,
		Exclusions:    exclusions,
		Remotes:       parent.Remotes,
		Managed:       parent.Managed,
		Active:        true,
	}
	if c.req.Filter != nil && !c.req.Filter.Include(coord, scope) {
		node.Active = false
		node.Filtered = true
		n := c.g.Add(parentID, node)
		return n.ID, true
	}

	if rng.IsHard() {
		node.Artifact.Version = ""
	}
	n := c.g.Add(parentID, node)
	if rng.IsHard() && !c.selectVersion(n) {
		n.Active, n.Unresolved = false, true
		n.Artifact.Version = rng.String()
		return n.ID, true
	}

	c.mediate(n)
	return n.ID, true
}

// selectVersion picks the highest available version matching n's range.
func (c *collector) selectVersion(n *graph.Node) bool {
	versions, ok := c.versions(n)
	if !ok {
		return false
	}
	v, found := n.Range.Match(versions)
	if !found {
		c.result.AddVersionRangeError(&resolution.VersionRangeError{
			Artifact:  n.Artifact.WithVersion(n.Range.String()),
			Trail:     c.g.Trail(n.ID),
			Range:     n.Range.String(),
			Available: versionStrings(versions),
			Err:       fmt.Errorf("no version matches: %w", version.ErrOverConstrained),
		})
		conflictsTotal.WithLabelValues(conflictOverConstraint).Inc()
		return false
	}
	n.Artifact.Version = v.String()
	c.fire(listener.Event{Kind: listener.SelectVersionFromRange, Artifact: n.Artifact, Range: n.Range, Scope: n.Scope, Depth: n.Depth})
	return true
}

func (c *collector) versions(n *graph.Node) ([]version.Version, bool) {
	key := n.Key()
	if list, ok := c.available[key]; ok {
		return list, true
	}
	list, err := c.req.Source.AvailableVersions(c.ctx, n.Artifact, n.Remotes)
	switch {
	case errors.Is(err, metadata.ErrNoVersions):
		c.result.AddVersionRangeError(&resolution.VersionRangeError{
			Artifact: n.Artifact.WithVersion(n.Range.String()),
			Trail:    c.g.Trail(n.ID),
			Range:    n.Range.String(),
			Err:      fmt.Errorf("%w: %w", err, version.ErrOverConstrained),
		})
		return nil, false
	case err != nil:
		c.metadataFailure(n, err)
		return nil, false
	}
	c.available[key] = list
	return list, true
}

// mediate resolves n against the node already selected for its key. The
// nearer node stays active; ties keep the earlier one.
func (c *collector) mediate(n *graph.Node) {
	key := n.Key()
	prevID, seen := c.live[key]
	if !seen || !c.g.Live(prevID) {
		c.live[key] = n.ID
		return
	}
	prev := c.g.Node(prevID)

	c.restrict(prev, n)

	nearest, farthest := prev, n
	if n.Depth < prev.Depth {
		nearest, farthest = n, prev
	}
	c.widen(farthest, nearest)

	c.omit(farthest, nearest)
	c.live[key] = nearest.ID
}

func (c *collector) omit(loser, winner *graph.Node) {
	c.g.Disable(loser.ID)
	conflictsTotal.WithLabelValues(conflictNearer).Inc()
	c.fire(listener.Event{Kind: listener.OmitForNearer, Artifact: loser.Artifact, Replacement: winner.Artifact, Scope: loser.Scope, Depth: loser.Depth})
}

// reselect applies nearest-wins once more over the finished tree. A winner
// omitted along with an ancestor leaves its key without a live node; the
// shallowest occurrence still reachable then takes over and is collected if
// it never was. Passes repeat until nothing changes.
func (c *collector) reselect() {
	for !c.stopped() && c.reselectPass() {
	}
}

func (c *collector) reselectPass() bool {
	order := make([]graph.NodeID, 0, c.g.Len())
	for i := 1; i < c.g.Len(); i++ {
		order = append(order, graph.NodeID(i))
	}
	sort.SliceStable(order, func(i, j int) bool {
		return c.g.Node(order[i]).Depth < c.g.Node(order[j]).Depth
	})

	changed := false
	chosen := map[artifact.Key]*graph.Node{}
	for _, id := range order {
		n := c.g.Node(id)
		if n.Filtered || n.Unresolved || !c.g.Live(n.Parent) {
			continue
		}
		key := n.Key()
		if winner, ok := chosen[key]; ok {
			if n.Active {
				c.omit(n, winner)
				changed = true
			}
			continue
		}
		chosen[key] = n
		c.live[key] = id
		if n.Active {
			continue
		}

		c.log.V(1).Info("restoring artifact after its nearer occurrence was omitted", "artifact", n.Artifact.String(), "depth", n.Depth)
		n.Active = true
		changed = true
		c.fire(listener.Event{Kind: listener.IncludeArtifact, Artifact: n.Artifact, Scope: n.Scope, Depth: n.Depth})
		if c.req.ResolveTransitively && !n.Expanded && n.Scope != artifact.ScopeSystem {
			c.visit(id)
		}
	}
	return changed
}

// restrict narrows both ranges of a conflict key to their intersection and
// re-selects versions where the intersection leaves no recommendation.
func (c *collector) restrict(prev, n *graph.Node) {
	merged, err := prev.Range.Intersect(n.Range)
	if err == nil {
		_, err = n.Range.Intersect(prev.Range)
	}
	if err != nil {
		c.result.AddVersionRangeError(&resolution.VersionRangeError{
			Artifact: n.Artifact,
			Trail:    c.g.Trail(n.ID),
			Range:    prev.Range.String() + " and " + n.Range.String(),
			Err:      err,
		})
		conflictsTotal.WithLabelValues(conflictOverConstraint).Inc()
		return
	}
	current, _ := n.Range.Intersect(prev.Range)
	c.fire(listener.Event{Kind: listener.RestrictRange, Artifact: n.Artifact, Replacement: prev.Artifact, Range: merged, Depth: n.Depth})

	prev.Range, n.Range = merged, current
	for _, reset := range []*graph.Node{prev, n} {
		if v, ok := reset.Range.Recommended(); ok {
			reset.Artifact.Version = v.String()
			continue
		}
		selected, err := version.Parse(reset.Artifact.Version)
		if err == nil && reset.Range.Contains(selected) {
			continue
		}
		if !c.selectVersion(reset) {
			return
		}
	}
}

// widen applies the wider scope of farthest to nearest. Direct declarations
// of the root keep their scope.
func (c *collector) widen(farthest, nearest *graph.Node) {
	if !artifact.Widens(farthest.Scope, nearest.Scope) {
		return
	}
	if nearest.Depth < 2 {
		c.fire(listener.Event{Kind: listener.UpdateScopeCurrentPom, Artifact: nearest.Artifact, Scope: nearest.Scope, NewScope: farthest.Scope, Depth: nearest.Depth})
		return
	}
	c.fire(listener.Event{Kind: listener.UpdateScope, Artifact: nearest.Artifact, Scope: nearest.Scope, NewScope: farthest.Scope, Depth: nearest.Depth})
	conflictsTotal.WithLabelValues(conflictScope).Inc()
	nearest.Scope = farthest.Scope
	c.rederive(nearest)
}

// rederive recomputes the scope of n's active subtree from n's scope.
func (c *collector) rederive(n *graph.Node) {
	for _, id := range n.Children {
		child := c.g.Node(id)
		if !child.Active {
			continue
		}
		if s, ok := artifact.Derive(child.DeclaredScope, n.Scope); ok && s != child.Scope {
			child.Scope = s
			c.rederive(child)
		}
	}
}

// visit retrieves n's descriptor and expands its declarations.
func (c *collector) visit(id graph.NodeID) {
	n := c.g.Node(id)
	desc, err := c.req.Source.Retrieve(c.ctx, n.Artifact, n.Remotes)
	if err != nil {
		c.metadataFailure(n, err)
		return
	}
	n.Managed = n.Managed.Merge(desc.Managed).Without(n.Key())
	remotes := repository.Merge(n.Remotes, desc.Repositories...)
	c.result.AddRepositories(desc.Repositories...)
	n.Expanded = true

	// Children inherit the merged remotes; n keeps the ones it was found in.
	own := n.Remotes
	n.Remotes = remotes
	c.expand(id, desc.Dependencies)
	c.g.Node(id).Remotes = own
}

func (c *collector) metadataFailure(n *graph.Node, err error) {
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		if c.interrupted {
			return
		}
		c.interrupted = true
		err = fmt.Errorf("%w: %w", resolution.ErrInterrupted, ctxErr)
	}
	c.result.AddMetadataError(&resolution.MetadataError{
		Artifact:     n.Artifact,
		Trail:        c.g.Trail(n.ID),
		Repositories: n.Remotes,
		Err:          err,
	})
}

func (c *collector) stopped() bool {
	if c.ctx.Err() == nil {
		return false
	}
	c.metadataFailure(c.g.Root(), c.ctx.Err())
	return true
}

// aggregate fills the result with the active nodes in first-visited order,
// keeping at most one node per conflict key.
func (c *collector) aggregate() {
	seen := map[artifact.Key]struct{}{}
	for i := 1; i < c.g.Len(); i++ {
		n := c.g.Node(graph.NodeID(i))
		if !n.Active || n.Filtered || !c.g.Live(n.ID) {
			continue
		}
		if _, dup := seen[n.Key()]; dup {
			continue
		}
		if !c.trailIncluded(n) {
			continue
		}
		seen[n.Key()] = struct{}{}
		c.result.AddArtifact(&resolution.Artifact{
			Coordinate: n.Artifact,
			Scope:      n.Scope,
			Depth:      n.Depth,
			Trail:      c.g.Trail(n.ID),
			Remotes:    n.Remotes,
			SystemPath: n.SystemPath,
		})
	}
}

func (c *collector) trailIncluded(n *graph.Node) bool {
	if c.req.Filter == nil {
		return true
	}
	for cur := n; cur != nil && !cur.IsRoot(); cur = c.g.Node(cur.Parent) {
		if !c.req.Filter.Include(cur.Artifact, cur.Scope) {
			return false
		}
	}
	return true
}

func (c *collector) fire(e listener.Event) {
	c.events.Observe(e)
}

func versionStrings(list []version.Version) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, v.String())
	}
	return out
}
