package hal

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds shared by every device in the module. Concrete errors wrap one
// of these so callers can branch with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTimeout          = errors.New("timed out")
	ErrCancelled        = errors.New("operation cancelled")
	ErrDisplayInit      = errors.New("display failed to initialise")
	ErrDisplayOutput    = errors.New("failed to display content")
	ErrDisplayInterface = errors.New("display interface error")
)

// InputError reports an argument that was rejected before any work was done.
type InputError struct {
	What string
	Why  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.What, e.Why)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// InvalidInput builds an *InputError.
func InvalidInput(what, why string) error {
	return &InputError{What: what, Why: why}
}

// TimeoutError reports that a wait ran out of time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// DisplayError wraps a failure coming from a display controller or its bus.
// Kind is one of ErrDisplayInit, ErrDisplayOutput or ErrDisplayInterface.
type DisplayError struct {
	Kind error
	Err  error
}

func (e *DisplayError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *DisplayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DisplayOutput wraps err as a failure to push pixels to a display.
func DisplayOutput(err error) error {
	return &DisplayError{Kind: ErrDisplayOutput, Err: err}
}

// DisplayInterface wraps err as a failure of the bus behind a display.
func DisplayInterface(err error) error {
	return &DisplayError{Kind: ErrDisplayInterface, Err: err}
}

// Cancelled wraps a context error so that it matches both ErrCancelled and
// the underlying cause (context.Canceled or context.DeadlineExceeded).
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
