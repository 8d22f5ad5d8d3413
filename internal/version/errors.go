package version

import "errors"

var (
	// ErrInvalidVersion indicates a malformed version string.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidRange indicates a malformed version range spec.
	ErrInvalidRange = errors.New("invalid version range")
	// ErrOverConstrained indicates that intersected ranges leave no version.
	ErrOverConstrained = errors.New("over-constrained version range")
)
