package artifact

// Managed is a dependency-management entry. Empty fields leave the managed
// artifact's own value alone.
type Managed struct {
	Version    string
	Scope      Scope
	Exclusions []Exclusion
	SystemPath string
}

// ManagedVersions maps conflict keys to their management entry.
type ManagedVersions map[Key]Managed

// Merge returns a copy of m extended with the entries of other that m does
// not already manage. Existing entries win.
func (m ManagedVersions) Merge(other ManagedVersions) ManagedVersions {
	out := make(ManagedVersions, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Without returns a copy of m that does not manage key.
func (m ManagedVersions) Without(key Key) ManagedVersions {
	if _, ok := m[key]; !ok {
		return m
	}
	out := make(ManagedVersions, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
