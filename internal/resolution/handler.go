package resolution

import "github.com/bayleafwalker/depresolve/internal/artifact"

// ErrorHandler turns a finished result into a single error, or nil when the
// result is acceptable.
type ErrorHandler interface {
	Handle(r *Result) error
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(r *Result) error

func (f ErrorHandlerFunc) Handle(r *Result) error { return f(r) }

// DefaultErrorHandler reports, in order: the first version-range, metadata
// or cycle error, then the first transfer error, then every missing
// artifact as one MultipleNotFoundError.
type DefaultErrorHandler struct{}

func (DefaultErrorHandler) Handle(r *Result) error {
	if errs := r.VersionRangeErrors(); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.MetadataErrors(); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.CycleErrors(); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.TransferErrors(); len(errs) > 0 {
		return errs[0]
	}
	missing := r.Missing()
	if len(missing) == 0 {
		return nil
	}
	var resolved []artifact.Coordinate
	for _, a := range r.Artifacts() {
		if a.Resolved {
			resolved = append(resolved, a.Coordinate)
		}
	}
	return &MultipleNotFoundError{
		Origin:       r.Origin(),
		Missing:      missing,
		Resolved:     resolved,
		Repositories: r.Repositories(),
	}
}
