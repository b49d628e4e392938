package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("manager closed")
	// ErrNotReady matches, via errors.Is, the diagnostic for a model that
	// is not downloaded yet.
	ErrNotReady = errors.New("model not ready")
)

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error when a requested model id is not in the catalog.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// notReadyError is the fast-fail answer for a model that cannot serve yet.
type notReadyError struct {
	name   string
	status string
}

func (e notReadyError) Error() string {
	return fmt.Sprintf("%s is not ready yet (%s). Fetching it now; try again when it shows Ready.", e.name, e.status)
}

func (e notReadyError) Is(target error) bool { return target == ErrNotReady }

// IsNotReady reports whether err is the not-ready diagnostic of RequestCompletion.
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }

// dependencyUnavailableError signals a missing external dependency (llama.cpp)
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
