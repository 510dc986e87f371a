package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrSelectionTimeout is returned when the chooser does not answer in
	// time. It is distinct from a cancelled chooser, which yields an empty
	// selection.
	ErrSelectionTimeout = errors.New("file selection timed out")

	// ErrSelectionCancelled may be returned by a host to report that the
	// user dismissed the chooser. Select turns it into an empty selection.
	ErrSelectionCancelled = errors.New("file selection cancelled")
)

// NetworkError reports that the upload never produced a response.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error posting to %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UploadRejectedError reports a non-2xx response.
type UploadRejectedError struct {
	Status     int
	StatusText string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.StatusText)
}

// UnexpectedError wraps any other failure, such as an unreadable file or a
// response body that is not JSON.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }
