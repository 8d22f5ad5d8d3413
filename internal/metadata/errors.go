package metadata

import "errors"

var (
	// ErrNotFound indicates no descriptor exists for the requested artifact.
	ErrNotFound = errors.New("descriptor not found")
	// ErrNoVersions indicates no versions are known for an artifact.
	ErrNoVersions = errors.New("no versions available")
)
