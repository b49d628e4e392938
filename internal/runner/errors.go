package runner

import (
	"errors"
	"fmt"
	"strings"
)

// StartError means an inference process could not be started.
type StartError struct{ Err error }

func (e StartError) Error() string { return "Failed to run llama.cpp: " + e.Err.Error() }
func (e StartError) Unwrap() error { return e.Err }

// ExitError is a CLI process that exited non-zero.
type ExitError struct {
	Err    error
	Stderr string
}

func (e ExitError) Error() string {
	msg := "llama.cpp exited: " + e.Err.Error()
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
func (e ExitError) Unwrap() error { return e.Err }

// ServerNotReadyError means the health endpoint never answered within the
// polling budget. The server process is left running.
type ServerNotReadyError struct{ Attempts int }

func (e ServerNotReadyError) Error() string { return "Server did not start in time." }

// ServerExitedError means the server process died before becoming ready.
type ServerExitedError struct {
	Err    error
	Stderr string
}

func (e ServerExitedError) Error() string {
	msg := "llama-server exited before ready"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "; stderr tail: " + s
	}
	return msg
}

// ServerHTTPError is a non-2xx completion response.
type ServerHTTPError struct{ Code int }

func (e ServerHTTPError) Error() string { return fmt.Sprintf("Server returned HTTP %d.", e.Code) }

// ServerError is a transport or decode failure while streaming from the server.
type ServerError struct{ Err error }

func (e ServerError) Error() string { return "Llama server error: " + e.Err.Error() }
func (e ServerError) Unwrap() error { return e.Err }

// IsServerNotReady reports whether err is a readiness timeout.
func IsServerNotReady(err error) bool {
	var e ServerNotReadyError
	return errors.As(err, &e)
}

// IsServerExited reports whether the server died during startup.
func IsServerExited(err error) bool {
	var e ServerExitedError
	return errors.As(err, &e)
}
