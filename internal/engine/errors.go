package engine

import (
	"errors"
	"fmt"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ engine string }

func (e tooBusyError) Error() string { return "too busy: " + e.engine }

// ErrTooBusy constructs the backpressure error for an engine.
func ErrTooBusy(engine string) error { return tooBusyError{engine: engine} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing execution backend so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// InvalidStateError reports a continuation state that cannot be decoded.
type InvalidStateError struct {
	Raw string
	Err error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid continuation state %q: %v", e.Raw, e.Err)
}

func (e *InvalidStateError) Unwrap() error { return e.Err }

// IsInvalidState reports whether err is an *InvalidStateError.
func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}
