// Package listener carries the diagnostic events emitted while a dependency
// tree is collected. Listeners observe; they never change the outcome.
package listener

import (
	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/version"
)

type Kind int

const (
	// TestArtifact fires whenever a node is considered.
	TestArtifact Kind = iota
	// IncludeArtifact fires when a node is kept in the tree.
	IncludeArtifact
	// OmitForNearer fires when Artifact loses against Replacement.
	OmitForNearer
	// OmitForCycle fires when Artifact already occurs in its own trail.
	OmitForCycle
	// UpdateScope fires when Artifact is widened from Scope to NewScope.
	UpdateScope
	// UpdateScopeCurrentPom fires when a wider scope was seen for a direct
	// dependency, whose declared scope is kept.
	UpdateScopeCurrentPom
	// SelectVersionFromRange fires when a version was picked from Range.
	SelectVersionFromRange
	// RestrictRange fires when two declarations of a key were intersected.
	RestrictRange
	// ManageArtifact fires when dependency management rewrote Artifact into
	// Replacement.
	ManageArtifact
)

var kindNames = [...]string{
	TestArtifact:           "test",
	IncludeArtifact:        "include",
	OmitForNearer:          "omitForNearer",
	OmitForCycle:           "omitForCycle",
	UpdateScope:            "updateScope",
	UpdateScopeCurrentPom:  "updateScopeCurrentPom",
	SelectVersionFromRange: "selectVersionFromRange",
	RestrictRange:          "restrictRange",
	ManageArtifact:         "manageArtifact",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Event describes one collector decision. Which fields are meaningful
// depends on Kind.
type Event struct {
	Kind        Kind
	Artifact    artifact.Coordinate
	Replacement artifact.Coordinate
	Scope       artifact.Scope
	NewScope    artifact.Scope
	Range       version.Range
	Depth       int
}

// Listener receives collector events synchronously.
type Listener interface {
	Observe(Event)
}

// Func adapts a function to Listener.
type Func func(Event)

func (f Func) Observe(e Event) { f(e) }

// Multi fans events out to every listener in order.
type Multi []Listener

func (m Multi) Observe(e Event) {
	for _, l := range m {
		if l != nil {
			l.Observe(e)
		}
	}
}

// Hooks dispatches events to per-kind callbacks. Unset hooks are no-ops.
type Hooks struct {
	OnTestArtifact           func(Event)
	OnIncludeArtifact        func(Event)
	OnOmitForNearer          func(Event)
	OnOmitForCycle           func(Event)
	OnUpdateScope            func(Event)
	OnUpdateScopeCurrentPom  func(Event)
	OnSelectVersionFromRange func(Event)
	OnRestrictRange          func(Event)
	OnManageArtifact         func(Event)
}

func (h Hooks) Observe(e Event) {
	var fn func(Event)
	switch e.Kind {
	case TestArtifact:
		fn = h.OnTestArtifact
	case IncludeArtifact:
		fn = h.OnIncludeArtifact
	case OmitForNearer:
		fn = h.OnOmitForNearer
	case OmitForCycle:
		fn = h.OnOmitForCycle
	case UpdateScope:
		fn = h.OnUpdateScope
	case UpdateScopeCurrentPom:
		fn = h.OnUpdateScopeCurrentPom
	case SelectVersionFromRange:
		fn = h.OnSelectVersionFromRange
	case RestrictRange:
		fn = h.OnRestrictRange
	case ManageArtifact:
		fn = h.OnManageArtifact
	}
	if fn != nil {
		fn(e)
	}
}
