package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is matched by every rejected state change.
	ErrInvalidTransition = errors.New("recorder: invalid transition")
	// ErrClosed is returned once Close has released the session.
	ErrClosed = errors.New("recorder: session closed")
)

// TransitionError reports an operation attempted from a state that does not
// allow it. The session is left unchanged.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("recorder: cannot %s while %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StreamError reports that the capture stream could not be opened.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "recorder: open capture stream: " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// SaveError reports that the buffered audio could not be written. The buffer
// is kept so Save can be retried.
type SaveError struct {
	Err error
}

func (e *SaveError) Error() string { return "recorder: save failed: " + e.Err.Error() }

func (e *SaveError) Unwrap() error { return e.Err }

// StopError reports that the capture stream did not stop cleanly. The audio
// already buffered is unaffected.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return "recorder: stop capture stream: " + e.Err.Error() }

func (e *StopError) Unwrap() error { return e.Err }
