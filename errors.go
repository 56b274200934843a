package promise

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned by the strict combinators (Race, First)
	// when they are called with zero inputs.
	ErrEmptyInput = errors.New("promise: no input promises")

	// ErrCanceled is the rejection reason of a timer wait removed by
	// Timer.Cancel.
	ErrCanceled = errors.New("promise: wait canceled")

	// errNilPromise rejects a derived promise when a handler that is
	// supposed to return a promise returns nil instead.
	errNilPromise = errors.New("promise: handler returned a nil promise")
)

// InvalidStateError reports an attempt to settle, or report progress on,
// a promise that is no longer pending. It is always a programming error.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("promise: cannot %s a %s promise", e.Op, e.State)
}

// PanicError wraps a value recovered from a panicking handler or predicate,
// carried as the rejection reason of the promise the handler was feeding.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("promise: handler panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}
