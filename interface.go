package promise

type State string

const (
	StatePending   = State("pending")
	StateFulfilled = State("fulfilled")
	StateRejected  = State("rejected")
)

type FulfillHandler[T, U any] func(value T) (result U, err error)
type RejectHandler[T any] func(reason error) (result T, err error)
type FinallyHandler func() error
type ProgressHandler func(fraction float64)

// Void is the value type of promises that settle without carrying a result,
// such as the waits produced by a Timer.
type Void struct{}

// Completer is the producer-facing half of a promise: whoever holds it is
// expected to call exactly one of Resolve/Reject when the underlying
// operation completes, optionally reporting progress zero or more times
// beforehand.
type Completer[T any] interface {
	Resolve(value T) error
	Reject(reason error) error
	Progress(fraction float64) error
}
