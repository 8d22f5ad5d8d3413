package repository

import "errors"

var (
	// ErrNotFound indicates the repository does not hold the requested file.
	ErrNotFound = errors.New("artifact not found in repository")
	// ErrUnsupportedScheme indicates no transport is registered for a URL scheme.
	ErrUnsupportedScheme = errors.New("unsupported repository scheme")

	ErrMissingID = errors.New("repository has no id")
	ErrBadURL    = errors.New("repository url is invalid")
	ErrBadPolicy = errors.New("invalid repository policy")

	// ErrChecksumFailed indicates a download did not match the checksum the
	// repository publishes for it, or that checksum could not be read.
	ErrChecksumFailed = errors.New("checksum verification failed")
)
