package fetch

import (
	"errors"
	"fmt"
)

// HTTPStatusError is a non-2xx response from the download host.
type HTTPStatusError struct {
	Code int
	File string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("Download failed with status %d. If the model is gated, set HF_TOKEN.", e.Code)
}

// IncompleteFileError is a downloaded file below its size threshold.
type IncompleteFileError struct{ Name string }

func (e IncompleteFileError) Error() string {
	return fmt.Sprintf("Downloaded %s looks incomplete. Check Hugging Face access and retry.", e.Name)
}

// NoSourceError is returned for descriptors without a remote repository,
// such as models discovered on disk.
type NoSourceError struct{ ID string }

func (e NoSourceError) Error() string {
	return fmt.Sprintf("%s has no remote source; copy the file into the models directory instead.", e.ID)
}

// IsHTTPStatus reports whether err carries a download status code.
func IsHTTPStatus(err error) bool {
	var e HTTPStatusError
	return errors.As(err, &e)
}

// IsIncompleteFile reports whether err is a size-validation failure.
func IsIncompleteFile(err error) bool {
	var e IncompleteFileError
	return errors.As(err, &e)
}
