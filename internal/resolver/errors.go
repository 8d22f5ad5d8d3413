package resolver

import "errors"

var (
	// ErrInvalidRequest indicates a request that cannot be resolved at all.
	ErrInvalidRequest = errors.New("invalid resolution request")
)
