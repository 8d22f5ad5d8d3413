package artifact

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Filter decides whether an artifact reached with the given effective scope
// takes part in a resolution.
type Filter interface {
	Include(c Coordinate, scope Scope) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(c Coordinate, scope Scope) bool

func (f FilterFunc) Include(c Coordinate, scope Scope) bool { return f(c, scope) }

type andFilter []Filter

// And combines filters; nil entries are skipped and an empty And includes
// everything.
func And(filters ...Filter) Filter {
	out := make(andFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (a andFilter) Include(c Coordinate, scope Scope) bool {
	for _, f := range a {
		if !f.Include(c, scope) {
			return false
		}
	}
	return true
}

// Exclusion removes group:artifact from a subtree. Either part may be "*".
type Exclusion struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
}

const wildcard = "*"

func (e Exclusion) Matches(c Coordinate) bool {
	return (e.GroupID == wildcard || e.GroupID == c.GroupID) &&
		(e.ArtifactID == wildcard || e.ArtifactID == c.ArtifactID)
}

func (e Exclusion) String() string { return e.GroupID + ":" + e.ArtifactID }

// ParseExclusion parses "group:artifact" or a bare "group" (all artifacts).
func ParseExclusion(raw string) Exclusion {
	g, a, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found || a == "" {
		a = wildcard
	}
	return Exclusion{GroupID: g, ArtifactID: a}
}

// Exclusions is an immutable set of exclusions. The zero value excludes
// nothing.
type Exclusions struct {
	exact    sets.Set[string]
	patterns []Exclusion
}

func NewExclusions(list ...Exclusion) Exclusions {
	return Exclusions{}.With(list...)
}

// With returns the union of x and list.
func (x Exclusions) With(list ...Exclusion) Exclusions {
	if len(list) == 0 {
		return x
	}
	out := Exclusions{exact: sets.New[string](), patterns: append([]Exclusion(nil), x.patterns...)}
	if x.exact != nil {
		out.exact = x.exact.Clone()
	}
	for _, e := range list {
		if e.GroupID == wildcard || e.ArtifactID == wildcard {
			out.patterns = append(out.patterns, e)
			continue
		}
		out.exact.Insert(e.String())
	}
	return out
}

// Union merges two exclusion sets.
func (x Exclusions) Union(o Exclusions) Exclusions {
	return x.With(o.List()...)
}

func (x Exclusions) Excludes(c Coordinate) bool {
	if x.exact.Has(c.GroupID + ":" + c.ArtifactID) {
		return true
	}
	for _, p := range x.patterns {
		if p.Matches(c) {
			return true
		}
	}
	return false
}

// Include makes Exclusions usable as a Filter.
func (x Exclusions) Include(c Coordinate, _ Scope) bool { return !x.Excludes(c) }

func (x Exclusions) Len() int { return x.exact.Len() + len(x.patterns) }

// List returns the exclusions, exact ones sorted first.
func (x Exclusions) List() []Exclusion {
	out := make([]Exclusion, 0, x.Len())
	for _, s := range sets.List(x.exact) {
		out = append(out, ParseExclusion(s))
	}
	return append(out, x.patterns...)
}

// ScopeFilter includes artifacts visible to a classpath of the given scope:
// compile sees compile, provided and system; runtime sees compile and runtime;
// test sees everything.
type ScopeFilter struct {
	scopes sets.Set[Scope]
}

func NewScopeFilter(scope Scope) ScopeFilter {
	switch scope.OrDefault() {
	case ScopeCompile:
		return ScopeFilter{scopes: sets.New(ScopeCompile, ScopeProvided, ScopeSystem)}
	case ScopeRuntime:
		return ScopeFilter{scopes: sets.New(ScopeCompile, ScopeRuntime)}
	case ScopeTest:
		return ScopeFilter{scopes: sets.New(ScopeCompile, ScopeRuntime, ScopeTest, ScopeProvided, ScopeSystem)}
	default:
		return ScopeFilter{scopes: sets.New(scope)}
	}
}

func (f ScopeFilter) Include(_ Coordinate, scope Scope) bool {
	return f.scopes.Has(scope.OrDefault())
}
