package listener

import (
	"strings"

	"github.com/go-logr/logr"
)

// Debug traces collector decisions on log at verbosity 1, indented by depth.
// TestArtifact events are only traced at verbosity 2.
func Debug(log logr.Logger) Listener {
	return Func(func(e Event) {
		level := 1
		if e.Kind == TestArtifact {
			level = 2
		}
		v := log.V(level)
		if !v.Enabled() {
			return
		}
		kv := []any{"event", e.Kind.String(), "artifact", e.Artifact.String(), "depth", e.Depth}
		switch e.Kind {
		case OmitForNearer, ManageArtifact:
			kv = append(kv, "replacement", e.Replacement.String())
		case UpdateScope, UpdateScopeCurrentPom:
			kv = append(kv, "scope", string(e.Scope), "newScope", string(e.NewScope))
		case SelectVersionFromRange, RestrictRange:
			kv = append(kv, "range", e.Range.String())
		}
		v.Info(strings.Repeat("  ", e.Depth)+e.Kind.String(), kv...)
	})
}
