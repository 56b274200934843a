package promise

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	t.Run("Zero inputs resolve immediately with an empty collection", func(t *testing.T) {
		rt := NewRuntime()

		result := All[int](rt)

		require.Equal(t, StateFulfilled, result.State())
		require.Empty(t, result.Value())
	})

	t.Run("Values keep input order regardless of completion order", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		p3 := New[int](rt)

		result := All(rt, p1, p2, p3)

		require.NoError(t, p2.Resolve(2))
		require.NoError(t, p3.Resolve(3))
		require.Equal(t, StatePending, result.State())
		require.NoError(t, p1.Resolve(1))

		if diff := cmp.Diff([]int{1, 2, 3}, result.Value()); diff != "" {
			t.Fatalf("unexpected values (-want +got):\n%s", diff)
		}
	})

	t.Run("The first observed rejection wins", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		first := errors.New("first failure")
		second := errors.New("second failure")

		result := All(rt, p1, p2)

		require.NoError(t, p1.Reject(first))
		require.NoError(t, p2.Reject(second))

		require.Equal(t, StateRejected, result.State())
		require.Same(t, first, result.Err())
	})

	t.Run("Settlements after rejection no longer affect the result", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)

		result := All(rt, p1, p2)

		require.NoError(t, p1.Reject(errors.New("failure")))
		require.NoError(t, p2.Resolve(2))

		require.Equal(t, StateRejected, result.State())
	})

	t.Run("Aggregate progress is the mean of the latest reports", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		var fractions []float64

		result := All(rt, p1, p2)
		result.OnProgress(func(fraction float64) { fractions = append(fractions, fraction) })

		require.NoError(t, p1.Progress(1.0))
		require.NoError(t, p2.Progress(0.5))

		require.Equal(t, []float64{0.5, 0.75}, fractions)
	})

	t.Run("A resolved input contributes 1.0 to the mean", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		var latest float64

		result := All(rt, p1, p2)
		result.OnProgress(func(fraction float64) { latest = fraction })

		require.NoError(t, p1.Resolve(1))

		require.Equal(t, 0.5, latest)
	})
}

func TestRace(t *testing.T) {
	t.Run("Zero inputs are a programming error", func(t *testing.T) {
		rt := NewRuntime()

		result, err := Race[int](rt)

		require.Nil(t, result)
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("The first settlement wins, the loser is ignored", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)

		result, err := Race(rt, p1, p2)
		require.NoError(t, err)

		require.NoError(t, p2.Resolve(2))
		require.NoError(t, p1.Resolve(1))

		require.Equal(t, StateFulfilled, result.State())
		require.Equal(t, 2, result.Value())
	})

	t.Run("A first rejection also wins", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		reason := errors.New("fastest failure")

		result, err := Race(rt, p1, p2)
		require.NoError(t, err)

		require.NoError(t, p1.Reject(reason))
		require.NoError(t, p2.Resolve(2))

		require.Same(t, reason, result.Err())
	})

	t.Run("Aggregate progress is the maximum of the latest reports", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)
		var fractions []float64

		result, err := Race(rt, p1, p2)
		require.NoError(t, err)
		result.OnProgress(func(fraction float64) { fractions = append(fractions, fraction) })

		require.NoError(t, p1.Progress(0.8))
		require.NoError(t, p2.Progress(0.3))
		require.NoError(t, p2.Progress(0.9))

		require.Equal(t, []float64{0.8, 0.8, 0.9}, fractions)
	})
}

func TestFirst(t *testing.T) {
	t.Run("Zero factories are a programming error", func(t *testing.T) {
		rt := NewRuntime()

		result, err := First[int](rt)

		require.Nil(t, result)
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("Resolves with the first resolution encountered", func(t *testing.T) {
		rt := NewRuntime()
		registry := NewCallsRegistry(2)

		result, err := First(rt,
			func() *Promise[int] {
				registry.Register("f1")
				return Rejected[int](rt, errors.New("f1 failed"))
			},
			func() *Promise[int] {
				registry.Register("f2")
				return Resolved(rt, 2)
			},
			func() *Promise[int] {
				registry.Register("f3")
				return Resolved(rt, 3)
			},
		)
		require.NoError(t, err)

		registry.AssertCurrentCallsStackIs(t, "f1|f2")
		require.Equal(t, 2, result.Value())
	})

	t.Run("Rejects with the last factory's error when all reject", func(t *testing.T) {
		rt := NewRuntime()
		last := errors.New("last failure")

		result, err := First(rt,
			func() *Promise[int] { return Rejected[int](rt, errors.New("first failure")) },
			func() *Promise[int] { return Rejected[int](rt, last) },
		)
		require.NoError(t, err)

		require.Equal(t, StateRejected, result.State())
		require.Same(t, last, result.Err())
	})

	t.Run("Progress counts exhausted factories", func(t *testing.T) {
		rt := NewRuntime()
		var fractions []float64

		p1 := New[int](rt)
		p2 := New[int](rt)
		result, err := First(rt,
			func() *Promise[int] { return p1 },
			func() *Promise[int] { return p2 },
			func() *Promise[int] { return New[int](rt) },
		)
		require.NoError(t, err)
		result.OnProgress(func(fraction float64) { fractions = append(fractions, fraction) })

		require.NoError(t, p1.Reject(errors.New("f1 failed")))
		require.NoError(t, p2.Reject(errors.New("f2 failed")))

		require.Equal(t, []float64{1.0 / 3.0, 2.0 / 3.0}, fractions)
	})

	t.Run("A panicking factory counts as a rejection", func(t *testing.T) {
		rt := NewRuntime()

		result, err := First(rt,
			func() *Promise[int] { panic("factory blew up") },
			func() *Promise[int] { return Resolved(rt, 2) },
		)
		require.NoError(t, err)

		require.Equal(t, 2, result.Value())
	})
}

func TestSequence(t *testing.T) {
	t.Run("Zero factories resolve immediately with an empty collection", func(t *testing.T) {
		rt := NewRuntime()

		result := Sequence[int](rt)

		require.Equal(t, StateFulfilled, result.State())
		require.Empty(t, result.Value())
	})

	t.Run("Factories run strictly in order, each after the previous resolves", func(t *testing.T) {
		rt := NewRuntime()
		registry := NewCallsRegistry(2)
		p1 := New[int](rt)
		p2 := New[int](rt)

		result := Sequence(rt,
			func() *Promise[int] {
				registry.Register("f1")
				return p1
			},
			func() *Promise[int] {
				registry.Register("f2")
				return p2
			},
		)

		registry.AssertCurrentCallsStackIs(t, "f1")
		require.NoError(t, p1.Resolve(1))
		registry.AssertCurrentCallsStackIs(t, "f1|f2")

		require.NoError(t, p2.Resolve(2))

		if diff := cmp.Diff([]int{1, 2}, result.Value()); diff != "" {
			t.Fatalf("unexpected values (-want +got):\n%s", diff)
		}
	})

	t.Run("A rejection short-circuits the remaining factories", func(t *testing.T) {
		rt := NewRuntime()
		registry := NewCallsRegistry(2)
		reason := errors.New("f2 failed")

		result := Sequence(rt,
			func() *Promise[int] {
				registry.Register("f1")
				return Resolved(rt, 1)
			},
			func() *Promise[int] {
				registry.Register("f2")
				return Rejected[int](rt, reason)
			},
			func() *Promise[int] {
				registry.Register("f3")
				return Resolved(rt, 3)
			},
		)

		registry.AssertCurrentCallsStackIs(t, "f1|f2")
		require.Same(t, reason, result.Err())
	})
}

func TestCombinatorNesting(t *testing.T) {
	t.Run("All composes with chaining", func(t *testing.T) {
		rt := NewRuntime()
		p1 := New[int](rt)
		p2 := New[int](rt)

		total := Then(All(rt, p1, p2), func(values []int) (int, error) {
			sum := 0
			for _, value := range values {
				sum += value
			}
			return sum, nil
		})

		require.NoError(t, p1.Resolve(40))
		require.NoError(t, p2.Resolve(2))

		require.Equal(t, 42, total.Value())
	})

	t.Run("Race result feeds a Done sink", func(t *testing.T) {
		rt := NewRuntime()
		registry := NewCallsRegistry(1)
		p1 := New[string](rt)
		p2 := New[string](rt)

		winner, err := Race(rt, p1, p2)
		require.NoError(t, err)
		winner.Done(func(value string) { registry.Register(fmt.Sprintf("won:%s", value)) }, nil)

		require.NoError(t, p2.Resolve("p2"))

		registry.AssertCurrentCallsStackIs(t, "won:p2")
	})
}
