package convert

import (
	"errors"
	"fmt"
)

// MissingFileError means a declared source file is absent from the working
// directory, usually because fetch was skipped or interrupted.
type MissingFileError struct{ Name string }

func (e MissingFileError) Error() string {
	return fmt.Sprintf("Missing required file %s. Re-download the model files.", e.Name)
}

// ToolMissingError means a required external tool could not be resolved.
type ToolMissingError struct {
	Tool string
	Hint string
}

func (e ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found. %s", e.Tool, e.Hint)
}

// ProcessFailedError is a non-zero exit from the converter or quantizer.
type ProcessFailedError struct {
	Stage  string
	Stderr string
}

func (e ProcessFailedError) Error() string {
	return "Conversion failed: " + e.Stderr
}

// IsConfiguration reports whether err needs user action (missing files or
// tools) rather than a plain retry.
func IsConfiguration(err error) bool {
	var mf MissingFileError
	var tm ToolMissingError
	return errors.As(err, &mf) || errors.As(err, &tm)
}

// IsProcessFailed reports whether an external tool exited non-zero.
func IsProcessFailed(err error) bool {
	var pf ProcessFailedError
	return errors.As(err, &pf)
}
