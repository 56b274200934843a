package promise

import (
	"sort"

	"github.com/hashicorp/go-hclog"
)

// RejectionHandler receives rejections that reached a Done sink without a
// reject-handler to absorb them.
type RejectionHandler func(promiseID uint64, reason error)

// PendingPromise is one entry of the diagnostics snapshot.
type PendingPromise struct {
	ID   uint64
	Name string
}

// Runtime holds the per-process state every promise needs: id allocation,
// the pending-promise diagnostics registry, and the unhandled-rejection
// channel. It is passed explicitly to every constructor; there is no
// ambient default.
//
// A Runtime provides no internal locking. Like the promises it backs, it
// assumes all calls happen on a single logical timeline.
type Runtime struct {
	logger  hclog.Logger
	nextID  uint64
	nextSub uint64
	pending map[uint64]string
	subs    []rejectionSub
}

type rejectionSub struct {
	id uint64
	fn RejectionHandler
}

type RuntimeOption func(rt *Runtime)

// WithLogger routes the runtime's diagnostics output to the given logger.
// Without it, nothing is logged.
func WithLogger(logger hclog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		logger:  hclog.NewNullLogger(),
		pending: map[uint64]string{},
	}

	for _, opt := range opts {
		opt(rt)
	}

	return rt
}

// OnUnhandledRejection subscribes to rejections that reach a Done sink
// unhandled. Subscribers are notified in subscription order. The returned
// function removes the subscription; calling it more than once is harmless.
func (rt *Runtime) OnUnhandledRejection(handler RejectionHandler) (cancel func()) {
	rt.nextSub++
	id := rt.nextSub
	rt.subs = append(rt.subs, rejectionSub{id: id, fn: handler})

	return func() {
		for i, sub := range rt.subs {
			if id == sub.id {
				rt.subs = append(rt.subs[:i], rt.subs[i+1:]...)
				return
			}
		}
	}
}

// Pending returns a snapshot of the currently pending promises, ordered by
// id. It is purely observational; mutating the returned slice has no effect
// on the runtime.
func (rt *Runtime) Pending() []PendingPromise {
	snapshot := make([]PendingPromise, 0, len(rt.pending))
	for id, name := range rt.pending {
		snapshot = append(snapshot, PendingPromise{ID: id, Name: name})
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ID < snapshot[j].ID
	})

	return snapshot
}

func (rt *Runtime) allocate(name string, pending bool) uint64 {
	rt.nextID++

	if pending {
		rt.pending[rt.nextID] = name
	}

	rt.logger.Trace("promise created", "id", rt.nextID, "name", name)

	return rt.nextID
}

func (rt *Runtime) settled(id uint64, state State) {
	delete(rt.pending, id)

	rt.logger.Trace("promise settled", "id", id, "state", state)
}

// notifyUnhandled fans a rejection out to the subscribers. A panicking
// subscriber never breaks delivery to the others, and never propagates back
// into library internals.
func (rt *Runtime) notifyUnhandled(id uint64, reason error) {
	rt.logger.Error("unhandled promise rejection", "id", id, "error", reason)

	// subscribers may attach or detach from inside their handler; iterate a
	// snapshot so the ongoing delivery keeps its order.
	subs := make([]rejectionSub, len(rt.subs))
	copy(subs, rt.subs)

	for _, sub := range subs {
		func() {
			defer func() {
				if v := recover(); nil != v {
					rt.logger.Error("rejection subscriber panicked", "id", id, "panic", v)
				}
			}()

			sub.fn(id, reason)
		}()
	}
}
