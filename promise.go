// Package promise implements a deferred-computation primitive: a producer
// signals eventual success or failure of an operation, and consumers register
// transformation and error-handling logic before or after that outcome is
// known.
//
// The package performs no I/O, spawns no goroutines, and holds no locks. All
// handler invocation happens synchronously on the stack of whichever caller
// settles a promise (or registers a handler on one already settled), and the
// design assumes those calls share a single logical timeline. Callers using
// promises from multiple goroutines must serialize access themselves.
package promise

type Option func(s *settings)

type settings struct {
	name string
}

// WithName attaches a human-readable debug label to the promise. Promises
// derived through chaining inherit the label of their source.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

type Promise[T any] struct {
	rt   *Runtime
	id   uint64
	name string

	state State
	value T
	err   error

	// latest fraction reported through Progress, kept for combinator
	// aggregation. Meaningful only while pending.
	lastProgress float64

	resolveHandlers  []func(value T)
	rejectHandlers   []func(reason error)
	progressHandlers []ProgressHandler
}

// New creates a pending promise tracked by the given runtime.
func New[T any](rt *Runtime, opts ...Option) *Promise[T] {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	return &Promise[T]{
		rt:    rt,
		id:    rt.allocate(s.name, true),
		name:  s.name,
		state: StatePending,
	}
}

// Resolved creates a promise already settled with the given value.
func Resolved[T any](rt *Runtime, value T) *Promise[T] {
	return &Promise[T]{
		rt:    rt,
		id:    rt.allocate("", false),
		state: StateFulfilled,
		value: value,
	}
}

// Rejected creates a promise already settled with the given reason.
func Rejected[T any](rt *Runtime, reason error) *Promise[T] {
	return &Promise[T]{
		rt:    rt,
		id:    rt.allocate("", false),
		state: StateRejected,
		err:   reason,
	}
}

// newDerived creates the downstream promise of a chaining call.
func newDerived[T any](rt *Runtime, name string) *Promise[T] {
	return &Promise[T]{
		rt:    rt,
		id:    rt.allocate(name, true),
		name:  name,
		state: StatePending,
	}
}

func (p *Promise[T]) ID() uint64 {
	return p.id
}

func (p *Promise[T]) Name() string {
	return p.name
}

func (p *Promise[T]) State() State {
	return p.state
}

// Value returns the settled value, or the zero value while not fulfilled.
func (p *Promise[T]) Value() T {
	return p.value
}

// Err returns the rejection reason, or nil while not rejected.
func (p *Promise[T]) Err() error {
	return p.err
}

// Resolve settles the promise with a value and invokes every registered
// resolve-handler in registration order. Settling a promise that is not
// pending is a programming error, reported as *InvalidStateError; the
// promise's recorded outcome is left untouched.
func (p *Promise[T]) Resolve(value T) error {
	if StatePending != p.state {
		return &InvalidStateError{Op: "resolve", State: p.state}
	}

	p.fulfill(value)

	return nil
}

// Reject settles the promise with a failure reason and invokes every
// registered reject-handler in registration order. Same state rules as
// Resolve.
func (p *Promise[T]) Reject(reason error) error {
	if StatePending != p.state {
		return &InvalidStateError{Op: "reject", State: p.state}
	}

	p.fail(reason)

	return nil
}

// Progress notifies the registered progress-handlers, in registration order,
// of a fractional-completion update. The fraction is passed through
// unmodified; values outside [0, 1] are the caller's business. Reporting on
// a settled promise is a programming error.
func (p *Promise[T]) Progress(fraction float64) error {
	if StatePending != p.state {
		return &InvalidStateError{Op: "report progress on", State: p.state}
	}

	p.progress(fraction)

	return nil
}

// OnResolve registers an observer for the fulfilled outcome. If the promise
// is already fulfilled, the observer fires immediately, in-line with this
// call; if already rejected, it is dropped.
func (p *Promise[T]) OnResolve(handler func(value T)) {
	switch p.state {
	case StatePending:
		p.resolveHandlers = append(p.resolveHandlers, handler)
	case StateFulfilled:
		p.invoke(func() { handler(p.value) })
	}
}

// OnReject registers an observer for the rejected outcome, with the same
// immediate-invocation rule as OnResolve.
func (p *Promise[T]) OnReject(handler func(reason error)) {
	switch p.state {
	case StatePending:
		p.rejectHandlers = append(p.rejectHandlers, handler)
	case StateRejected:
		p.invoke(func() { handler(p.err) })
	}
}

// OnProgress registers an observer for progress reports. Progress only
// flows while pending, so registration on a settled promise is a no-op.
func (p *Promise[T]) OnProgress(handler ProgressHandler) {
	if StatePending == p.state {
		p.progressHandlers = append(p.progressHandlers, handler)
	}
}

// fulfill transitions to fulfilled. Callers must have verified the promise
// is pending. The handler lists are detached before invocation so that
// handlers fire exactly once and no reference to them outlives settlement.
func (p *Promise[T]) fulfill(value T) {
	p.state = StateFulfilled
	p.value = value
	p.rt.settled(p.id, StateFulfilled)

	handlers := p.resolveHandlers
	p.clearHandlers()

	for _, handler := range handlers {
		handler := handler
		p.invoke(func() { handler(value) })
	}
}

// fail is the rejection counterpart of fulfill.
func (p *Promise[T]) fail(reason error) {
	p.state = StateRejected
	p.err = reason
	p.rt.settled(p.id, StateRejected)

	handlers := p.rejectHandlers
	p.clearHandlers()

	for _, handler := range handlers {
		handler := handler
		p.invoke(func() { handler(reason) })
	}
}

// progress forwards a report to the registered observers. Library
// machinery (chaining, combinators) may race a forwarded report against a
// settlement it has already produced, so unlike the public Progress this
// silently drops reports once the promise settled.
func (p *Promise[T]) progress(fraction float64) {
	if StatePending != p.state {
		return
	}

	p.lastProgress = fraction

	for _, handler := range p.progressHandlers {
		handler := handler
		p.invoke(func() { handler(fraction) })
	}
}

func (p *Promise[T]) clearHandlers() {
	p.resolveHandlers = nil
	p.rejectHandlers = nil
	p.progressHandlers = nil
}

// invoke runs one handler inside a fault boundary, so one misbehaving
// consumer cannot abort delivery to its siblings or unwind the settlement
// call itself. Handlers installed by the chaining layer redirect their own
// faults to their derived promise before this boundary is reached; whatever
// still escapes here came from a bare observer with no derived promise, and
// is routed to the unhandled-rejection channel.
func (p *Promise[T]) invoke(handler func()) {
	defer func() {
		if v := recover(); nil != v {
			p.rt.notifyUnhandled(p.id, &PanicError{Value: v})
		}
	}()

	handler()
}
