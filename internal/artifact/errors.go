package artifact

import "errors"

var (
	ErrBadCoordinate   = errors.New("malformed coordinate")
	ErrMissingGroup    = errors.New("coordinate has no group id")
	ErrMissingArtifact = errors.New("coordinate has no artifact id")
)
