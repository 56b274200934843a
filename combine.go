package promise

// All returns a promise resolved with every input's value, in input order
// regardless of completion order, once all inputs have resolved. It rejects
// with the first rejection observed and ignores whatever the remaining
// inputs do afterwards. Zero inputs resolve immediately with an empty slice.
//
// Aggregate progress is the arithmetic mean of each input's latest reported
// fraction; an input that has not reported contributes 0, and a resolved
// input contributes 1.
func All[T any](rt *Runtime, promises ...*Promise[T]) *Promise[[]T] {
	result := New[[]T](rt, WithName("all"))

	total := len(promises)
	if 0 == total {
		result.fulfill([]T{})

		return result
	}

	values := make([]T, total)
	fractions := make([]float64, total)
	remaining := total

	report := func() {
		if StatePending != result.state {
			return
		}

		sum := 0.0
		for _, fraction := range fractions {
			sum += fraction
		}

		result.progress(sum / float64(total))
	}

	for i, p := range promises {
		i := i

		p.OnProgress(func(fraction float64) {
			fractions[i] = fraction
			report()
		})

		p.OnResolve(func(value T) {
			if StatePending != result.state {
				return
			}

			values[i] = value
			fractions[i] = 1
			remaining--

			if 0 == remaining {
				result.fulfill(values)
			} else {
				report()
			}
		})

		p.OnReject(func(reason error) {
			if StatePending == result.state {
				result.fail(reason)
			}
		})
	}

	return result
}

// Race returns a promise settled with the outcome of whichever input
// settles first; later settlements have no effect. Zero inputs is a
// programming error, reported as ErrEmptyInput.
//
// Aggregate progress is the maximum of the inputs' latest reported
// fractions.
func Race[T any](rt *Runtime, promises ...*Promise[T]) (*Promise[T], error) {
	if 0 == len(promises) {
		return nil, ErrEmptyInput
	}

	result := New[T](rt, WithName("race"))
	fractions := make([]float64, len(promises))

	report := func() {
		if StatePending != result.state {
			return
		}

		highest := 0.0
		for _, fraction := range fractions {
			if fraction > highest {
				highest = fraction
			}
		}

		result.progress(highest)
	}

	for i, p := range promises {
		i := i

		p.OnProgress(func(fraction float64) {
			fractions[i] = fraction
			report()
		})

		p.OnResolve(func(value T) {
			if StatePending == result.state {
				result.fulfill(value)
			}
		})

		p.OnReject(func(reason error) {
			if StatePending == result.state {
				result.fail(reason)
			}
		})
	}

	return result, nil
}

// First invokes the factories one at a time: a rejection moves on to the
// next factory, the first resolution settles the result, and if every
// factory rejects the result carries the last factory's error. Zero
// factories is a programming error, reported as ErrEmptyInput.
//
// Aggregate progress is the count of exhausted factories over the total,
// reported as each one fails.
func First[T any](rt *Runtime, factories ...func() *Promise[T]) (*Promise[T], error) {
	if 0 == len(factories) {
		return nil, ErrEmptyInput
	}

	result := New[T](rt, WithName("first"))
	total := len(factories)

	var attempt func(index int)
	attempt = func(index int) {
		p := makePromise(rt, factories[index])

		p.OnResolve(func(value T) {
			if StatePending == result.state {
				result.fulfill(value)
			}
		})

		p.OnReject(func(reason error) {
			if StatePending != result.state {
				return
			}

			exhausted := index + 1
			if exhausted == total {
				result.fail(reason)

				return
			}

			result.progress(float64(exhausted) / float64(total))
			attempt(exhausted)
		})
	}

	attempt(0)

	return result, nil
}

// Sequence invokes the factories one at a time, waiting for each returned
// promise to resolve before invoking the next, and resolves with the
// ordered results. The first rejection settles the result immediately and
// the remaining factories are never invoked. Zero factories resolve
// immediately with an empty slice.
func Sequence[T any](rt *Runtime, factories ...func() *Promise[T]) *Promise[[]T] {
	result := New[[]T](rt, WithName("sequence"))
	total := len(factories)
	values := make([]T, 0, total)

	var step func(index int)
	step = func(index int) {
		if index == total {
			result.fulfill(values)

			return
		}

		p := makePromise(rt, factories[index])

		p.OnResolve(func(value T) {
			if StatePending != result.state {
				return
			}

			values = append(values, value)
			step(index + 1)
		})

		p.OnReject(func(reason error) {
			if StatePending == result.state {
				result.fail(reason)
			}
		})
	}

	step(0)

	return result
}

// makePromise invokes a factory, converting a panic or a nil result into a
// rejected promise so combinators can treat every factory outcome
// uniformly.
func makePromise[T any](rt *Runtime, factory func() *Promise[T]) (p *Promise[T]) {
	defer func() {
		if v := recover(); nil != v {
			p = Rejected[T](rt, &PanicError{Value: v})
		}
	}()

	if p = factory(); nil == p {
		p = Rejected[T](rt, errNilPromise)
	}

	return p
}
