package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by a non-blocking source whose capture is
	// still in flight.
	ErrNotReady = errors.New("capture not ready")
	// ErrNoPayload is returned for a capture that produced no pixel data.
	ErrNoPayload = errors.New("capture returned no payload")
	// ErrSourceClosed is returned by sources used after Close.
	ErrSourceClosed = errors.New("capture source closed")
	// ErrInvalidFPS is returned for a non-positive target frame rate.
	ErrInvalidFPS = errors.New("target fps must be positive")
	// ErrAlreadyRunning is returned by Start on a running service.
	ErrAlreadyRunning = errors.New("capture service already running")
)

// CaptureError wraps a backend failure with the name of the source.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
