package artifact

// Scope controls which build phases see an artifact and how it narrows for
// transitive dependents.
type Scope string

const (
	ScopeUnset    Scope = ""
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeTest     Scope = "test"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
)

// OrDefault resolves an unset declared scope to compile.
func (s Scope) OrDefault() Scope {
	if s == ScopeUnset {
		return ScopeCompile
	}
	return s
}

func (s Scope) Valid() bool {
	switch s {
	case ScopeUnset, ScopeCompile, ScopeRuntime, ScopeTest, ScopeProvided, ScopeSystem:
		return true
	}
	return false
}

// Derive computes the effective scope of a dependency declared with declared
// scope below a parent whose effective scope is inherited. Direct dependencies
// of the root pass ScopeUnset as inherited. The second result is false when
// the dependency is not transitive and must be dropped.
func Derive(declared, inherited Scope) (Scope, bool) {
	declared = declared.OrDefault()
	if inherited == ScopeUnset {
		return declared, true
	}

	desired := ScopeRuntime
	switch {
	case declared == ScopeTest || declared == ScopeProvided:
		return ScopeUnset, false
	case declared == ScopeCompile && inherited == ScopeCompile:
		desired = ScopeCompile
	}

	switch inherited {
	case ScopeTest:
		desired = ScopeTest
	case ScopeProvided:
		desired = ScopeProvided
	}
	if declared == ScopeSystem {
		desired = ScopeSystem
	}
	return desired, true
}

// Widens reports whether the scope reached on a farther path must replace the
// scope of the nearer occurrence of the same artifact: runtime beats test and
// provided, and compile beats everything but system.
func Widens(farthest, nearest Scope) bool {
	farthest, nearest = farthest.OrDefault(), nearest.OrDefault()
	if nearest == ScopeSystem {
		return false
	}
	switch farthest {
	case ScopeRuntime:
		return nearest == ScopeTest || nearest == ScopeProvided
	case ScopeCompile:
		return nearest != ScopeCompile
	}
	return false
}
