package promise

// TimeData is the view of simulated time a wait predicate is evaluated
// against.
type TimeData struct {
	// Elapsed is the accumulated time, in seconds, since the wait was
	// created.
	Elapsed float64

	// Delta is the amount of time the current Update call advanced by.
	Delta float64

	// Updates is the number of Update calls the wait has been evaluated in,
	// including the current one.
	Updates int
}

// Predicate decides whether a wait is over. Returning an error rejects the
// wait's promise with that error.
type Predicate func(t TimeData) (done bool, err error)

type predicateWait struct {
	pred    Predicate
	promise *Promise[Void]

	// accumulated timer time at creation; elapsed time is measured from it.
	since   float64
	updates int
}

// Timer resolves promises when a predicate over elapsed time becomes true.
// It has no clock of its own: time advances only through Update, at whatever
// cadence the caller chooses (for example once per rendering frame).
type Timer struct {
	rt    *Runtime
	time  float64
	waits []*predicateWait
}

func NewTimer(rt *Runtime) *Timer {
	return &Timer{rt: rt}
}

// Time returns the accumulated simulated time, in seconds.
func (t *Timer) Time() float64 {
	return t.time
}

// WaitFor returns a promise that resolves once at least the given number of
// seconds has accumulated, counting from now.
func (t *Timer) WaitFor(seconds float64) *Promise[Void] {
	return t.WaitUntil(func(td TimeData) (bool, error) {
		return td.Elapsed >= seconds, nil
	})
}

// WaitUntil returns a promise that resolves on the first Update in which
// pred returns true.
func (t *Timer) WaitUntil(pred Predicate) *Promise[Void] {
	p := New[Void](t.rt, WithName("wait"))

	t.waits = append(t.waits, &predicateWait{
		pred:    pred,
		promise: p,
		since:   t.time,
	})

	return p
}

// WaitWhile is WaitUntil with the predicate inverted: the promise resolves
// on the first Update in which pred returns false.
func (t *Timer) WaitWhile(pred Predicate) *Promise[Void] {
	return t.WaitUntil(func(td TimeData) (bool, error) {
		ongoing, err := pred(td)

		return !ongoing, err
	})
}

// Update advances the accumulated time by delta seconds and re-evaluates
// every active wait in insertion order. A predicate returning true resolves
// its wait; a predicate error or panic rejects it; either removes the wait
// from the active list. Waits registered from inside a handler fired here
// are first evaluated on the next Update.
func (t *Timer) Update(delta float64) {
	t.time += delta

	// handlers fired below may add or cancel waits; iterate a snapshot and
	// consult the live list before each evaluation.
	current := make([]*predicateWait, len(t.waits))
	copy(current, t.waits)

	for _, w := range current {
		if !t.active(w) {
			continue
		}

		w.updates++

		done, err := evaluate(w.pred, TimeData{
			Elapsed: t.time - w.since,
			Delta:   delta,
			Updates: w.updates,
		})

		if nil == err && !done {
			continue
		}

		t.remove(w)
		t.settle(w, err)
	}
}

func (t *Timer) active(w *predicateWait) bool {
	for _, candidate := range t.waits {
		if w == candidate {
			return true
		}
	}

	return false
}

func (t *Timer) remove(w *predicateWait) {
	for i, candidate := range t.waits {
		if w == candidate {
			t.waits = append(t.waits[:i], t.waits[i+1:]...)
			return
		}
	}
}

// Cancel looks up the active wait settling the given promise, rejects it
// with ErrCanceled and removes it. It returns false when no such wait is
// active (already settled, cancelled, or never created by this timer).
func (t *Timer) Cancel(p *Promise[Void]) bool {
	for _, w := range t.waits {
		if p == w.promise {
			t.remove(w)
			t.settle(w, ErrCanceled)

			return true
		}
	}

	return false
}

// settle resolves or rejects a wait's promise. A wait whose promise was
// settled behind the timer's back is simply dropped.
func (t *Timer) settle(w *predicateWait, reason error) {
	if StatePending != w.promise.state {
		return
	}

	if nil == reason {
		w.promise.fulfill(Void{})
	} else {
		w.promise.fail(reason)
	}
}

func evaluate(pred Predicate, td TimeData) (done bool, err error) {
	defer func() {
		if v := recover(); nil != v {
			done, err = false, &PanicError{Value: v}
		}
	}()

	return pred(td)
}
