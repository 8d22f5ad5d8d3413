package repository

import (
	"fmt"
	"net/url"
	"strings"
)

// Remote is a remote artifact repository.
type Remote struct {
	ID        string
	URL       string
	Releases  Policy
	Snapshots Policy
}

// Policy controls whether a repository serves a class of artifacts and how
// often cached copies are re-checked against it.
type Policy struct {
	Enabled  bool
	Update   UpdatePolicy
	Checksum ChecksumPolicy
}

// DefaultPolicy is enabled, checks daily and warns on checksum mismatches.
var DefaultPolicy = Policy{Enabled: true, Update: UpdatePolicy{Kind: UpdateDaily}, Checksum: ChecksumWarn}

// NewRemote builds a remote with default release and snapshot policies.
func NewRemote(id, rawURL string) Remote {
	return Remote{ID: id, URL: rawURL, Releases: DefaultPolicy, Snapshots: DefaultPolicy}
}

// PolicyFor returns the policy that applies to a snapshot or release artifact.
func (r Remote) PolicyFor(snapshot bool) Policy {
	if snapshot {
		return r.Snapshots
	}
	return r.Releases
}

func (r Remote) Scheme() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

func (r Remote) String() string { return fmt.Sprintf("%s (%s)", r.ID, r.URL) }

// Validate checks the id and URL of r.
func (r Remote) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("repository: %q: %w", r.URL, ErrMissingID)
	}
	if _, err := url.Parse(r.URL); err != nil || strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("repository %s: url %q: %w", r.ID, r.URL, ErrBadURL)
	}
	return nil
}

// Merge appends the remotes of extra whose ids are not yet present.
func Merge(base []Remote, extra ...Remote) []Remote {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	out := make([]Remote, 0, len(base)+len(extra))
	for _, r := range base {
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	for _, r := range extra {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
