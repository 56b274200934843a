package promise

// follow is the single chaining primitive. It creates the derived promise of
// a chaining call and registers the branch handlers on the source; every
// public operator (Then, Catch, Finally, ContinueWith, Done) is built on it.
//
// Each branch handler runs inside a fault boundary that redirects a panic to
// the derived promise, so a failing consumer never unwinds the settlement
// call of the source. Progress passes through unchanged unless onProgress
// overrides it.
func follow[T, U any](
	src *Promise[T],
	onFulfilled func(d *Promise[U], value T),
	onRejected func(d *Promise[U], reason error),
	onProgress func(d *Promise[U], fraction float64),
) *Promise[U] {
	d := newDerived[U](src.rt, src.name)

	src.OnResolve(func(value T) {
		deliver(d, func() { onFulfilled(d, value) })
	})

	src.OnReject(func(reason error) {
		deliver(d, func() { onRejected(d, reason) })
	})

	src.OnProgress(func(fraction float64) {
		if nil == onProgress {
			d.progress(fraction)
		} else {
			deliver(d, func() { onProgress(d, fraction) })
		}
	})

	return d
}

// deliver runs one chained handler, converting a panic into a rejection of
// the handler's own derived promise. If the handler managed to settle the
// derived promise before panicking there is nowhere left to redirect the
// fault, so it goes to the unhandled-rejection channel instead.
func deliver[U any](d *Promise[U], run func()) {
	defer func() {
		if v := recover(); nil != v {
			if StatePending == d.state {
				d.fail(&PanicError{Value: v})
			} else {
				d.rt.notifyUnhandled(d.id, &PanicError{Value: v})
			}
		}
	}()

	run()
}

// adopt ties the derived promise to an inner promise returned by a handler:
// settlement and progress are forwarded 1:1 once the inner promise produces
// them.
func adopt[U any](d *Promise[U], inner *Promise[U]) {
	if nil == inner {
		d.fail(errNilPromise)
		return
	}

	inner.OnResolve(d.fulfill)
	inner.OnReject(d.fail)
	inner.OnProgress(d.progress)
}

// Then derives a promise settled with the result of applying onFulfilled to
// the source's value. A returned error rejects the derived promise; a
// source rejection skips onFulfilled and propagates.
func Then[T, U any](p *Promise[T], onFulfilled FulfillHandler[T, U]) *Promise[U] {
	return follow[T, U](p,
		func(d *Promise[U], value T) {
			result, err := onFulfilled(value)
			if nil != err {
				d.fail(err)
				return
			}

			d.fulfill(result)
		},
		func(d *Promise[U], reason error) {
			d.fail(reason)
		},
		nil,
	)
}

// Combine is the flattening counterpart of Then: onFulfilled returns a
// promise, and the derived promise settles only when that inner promise
// settles.
func Combine[T, U any](p *Promise[T], onFulfilled func(value T) (*Promise[U], error)) *Promise[U] {
	return follow[T, U](p,
		func(d *Promise[U], value T) {
			inner, err := onFulfilled(value)
			if nil != err {
				d.fail(err)
				return
			}

			adopt(d, inner)
		},
		func(d *Promise[U], reason error) {
			d.fail(reason)
		},
		nil,
	)
}

// ContinueWith invokes producer regardless of the source's outcome and
// chains its result like the resolved branch of Then.
func ContinueWith[T, U any](p *Promise[T], producer func() (*Promise[U], error)) *Promise[U] {
	continued := func(d *Promise[U]) {
		inner, err := producer()
		if nil != err {
			d.fail(err)
			return
		}

		adopt(d, inner)
	}

	return follow[T, U](p,
		func(d *Promise[U], _ T) { continued(d) },
		func(d *Promise[U], _ error) { continued(d) },
		nil,
	)
}

// Then is the same-type form; a nil handler passes the value through.
func (p *Promise[T]) Then(onFulfilled FulfillHandler[T, T]) *Promise[T] {
	if nil == onFulfilled {
		onFulfilled = func(value T) (T, error) { return value, nil }
	}

	return Then[T, T](p, onFulfilled)
}

// Combine is the same-type form of the package-level Combine.
func (p *Promise[T]) Combine(onFulfilled func(value T) (*Promise[T], error)) *Promise[T] {
	return Combine[T, T](p, onFulfilled)
}

// Catch derives a promise that recovers a rejection: onRejected may absorb
// the reason and produce a replacement value, or return an error to keep the
// derived promise rejected. A nil handler propagates the rejection, and a
// fulfilled source passes through untouched either way.
func (p *Promise[T]) Catch(onRejected RejectHandler[T]) *Promise[T] {
	return follow[T, T](p,
		func(d *Promise[T], value T) {
			d.fulfill(value)
		},
		func(d *Promise[T], reason error) {
			if nil == onRejected {
				d.fail(reason)
				return
			}

			result, err := onRejected(reason)
			if nil != err {
				d.fail(err)
				return
			}

			d.fulfill(result)
		},
		nil,
	)
}

// CatchCombine recovers a rejection through a promise-returning handler.
func (p *Promise[T]) CatchCombine(onRejected func(reason error) (*Promise[T], error)) *Promise[T] {
	return follow[T, T](p,
		func(d *Promise[T], value T) {
			d.fulfill(value)
		},
		func(d *Promise[T], reason error) {
			if nil == onRejected {
				d.fail(reason)
				return
			}

			inner, err := onRejected(reason)
			if nil != err {
				d.fail(err)
				return
			}

			adopt(d, inner)
		},
		nil,
	)
}

// Finally runs action on either outcome and preserves the original
// settlement, unless action itself fails, in which case its error supersedes
// the original outcome.
func (p *Promise[T]) Finally(action FinallyHandler) *Promise[T] {
	run := func() error {
		if nil == action {
			return nil
		}

		return action()
	}

	return follow[T, T](p,
		func(d *Promise[T], value T) {
			if err := run(); nil != err {
				d.fail(err)
				return
			}

			d.fulfill(value)
		},
		func(d *Promise[T], reason error) {
			if err := run(); nil != err {
				d.fail(err)
				return
			}

			d.fail(reason)
		},
		nil,
	)
}

// FinallyCombine is Finally with a promise-returning action: the derived
// promise re-emits the original settlement only once the action's promise
// resolves, and an action failure of either shape (returned error, rejected
// promise, panic) supersedes the original outcome.
func (p *Promise[T]) FinallyCombine(action func() (*Promise[Void], error)) *Promise[T] {
	run := func(d *Promise[T], emit func()) {
		if nil == action {
			emit()
			return
		}

		inner, err := action()
		if nil != err {
			d.fail(err)
			return
		}

		if nil == inner {
			d.fail(errNilPromise)
			return
		}

		inner.OnResolve(func(Void) { emit() })
		inner.OnReject(d.fail)
	}

	return follow[T, T](p,
		func(d *Promise[T], value T) {
			run(d, func() { d.fulfill(value) })
		},
		func(d *Promise[T], reason error) {
			run(d, func() { d.fail(reason) })
		},
		nil,
	)
}

// ContinueWith is the same-type form of the package-level ContinueWith.
func (p *Promise[T]) ContinueWith(producer func() (*Promise[T], error)) *Promise[T] {
	return ContinueWith[T, T](p, producer)
}

// ThenProgress derives a promise whose progress reports are the source's
// passed through onProgress; settlement is forwarded unchanged.
func (p *Promise[T]) ThenProgress(onProgress func(fraction float64) float64) *Promise[T] {
	return follow[T, T](p,
		func(d *Promise[T], value T) {
			d.fulfill(value)
		},
		func(d *Promise[T], reason error) {
			d.fail(reason)
		},
		func(d *Promise[T], fraction float64) {
			d.progress(onProgress(fraction))
		},
	)
}

// Done terminates a chain. Handlers are optional; a rejection that reaches
// the sink unabsorbed (no onRejected, or a fault inside either handler) is
// forwarded to the runtime's unhandled-rejection channel under this
// promise's id, so a chain without a terminal consumer cannot swallow
// errors silently.
func (p *Promise[T]) Done(onFulfilled func(value T), onRejected func(reason error)) {
	sink := follow[T, T](p,
		func(d *Promise[T], value T) {
			if nil != onFulfilled {
				onFulfilled(value)
			}

			d.fulfill(value)
		},
		func(d *Promise[T], reason error) {
			if nil == onRejected {
				d.fail(reason)
				return
			}

			onRejected(reason)

			var absorbed T
			d.fulfill(absorbed)
		},
		nil,
	)

	sink.OnReject(func(reason error) {
		p.rt.notifyUnhandled(p.id, reason)
	})
}
