package turnloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfilledResolvesImmediately(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		v, err := Wait(ws, Fulfilled(42))
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestRejectedPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		_, err := Wait(ws, Rejected[int](sentinel))
		assert.ErrorIs(t, err, sentinel)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestThenMapChangesType(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p := ThenMap(Fulfilled(7), func(v int) (string, error) {
			return "seven", nil
		})
		v, err := Wait(ws, p)
		require.NoError(t, err)
		assert.Equal(t, "seven", v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestThenChainFlattensNestedPromise(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p := ThenChain(Fulfilled(1), func(v int) (Promise[int], error) {
			return Fulfilled(v + 41), nil
		})
		v, err := Wait(ws, p)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestThenChainPropagatesOuterError(t *testing.T) {
	sentinel := errors.New("outer failure")
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p := ThenChain(Rejected[int](sentinel), func(v int) (Promise[int], error) {
			t.Fatal("callback must not run when the outer promise rejects")
			return Fulfilled(0), nil
		})
		_, err := Wait(ws, p)
		assert.ErrorIs(t, err, sentinel)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestExclusiveJoinPicksFirstSettled(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		winner := Fulfilled("fast")
		p, f := NewPromiseAndFulfiller[string](ws.loop)
		_ = p
		joined := ExclusiveJoin(winner, p)
		v, err := Wait(ws, joined)
		require.NoError(t, err)
		assert.Equal(t, "fast", v)
		// The loser's fulfiller is still safe to resolve; it should be a no-op.
		f.Fulfill("slow")
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestJoinAllPreservesOrder(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		ps := []Promise[int]{Fulfilled(3), Fulfilled(1), Fulfilled(4), Fulfilled(1)}
		v, err := Wait(ws, JoinAll(ps))
		require.NoError(t, err)
		assert.Equal(t, []int{3, 1, 4, 1}, v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestJoinAllCancelsRemainingOnFirstError(t *testing.T) {
	sentinel := errors.New("one failed")
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		_, neverFulfilled := NewPromiseAndFulfiller[int](ws.loop)
		ps := []Promise[int]{Fulfilled(1), Rejected[int](sentinel), neverFulfilled}
		_, err := Wait(ws, JoinAll(ps))
		assert.ErrorIs(t, err, sentinel)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestDroppedFulfillerBreaksPromise exercises the structural-cancellation
// primitive underpinning every async operation in the package: a Fulfiller
// that is dropped without Fulfill/Reject resolves its paired promise with
// *BrokenPromiseError.
func TestDroppedFulfillerBreaksPromise(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p, f := NewPromiseAndFulfiller[int](ws.loop)
		f.Drop()
		_, err := Wait(ws, p)
		var broken *BrokenPromiseError
		require.ErrorAs(t, err, &broken)
		assert.ErrorIs(t, err, ErrBrokenPromise)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestFulfillTwiceIsFatal checks that resolving a fulfiller a second time
// is treated as a programming error, not a silent no-op.
func TestFulfillTwiceIsFatal(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p, f := NewPromiseAndFulfiller[int](ws.loop)
		f.Fulfill(1)
		assert.PanicsWithValue(t, "turnloop: fatal: fulfiller already resolved or dropped", func() {
			f.Fulfill(2)
		})
		v, err := Wait(ws, p)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestCancelIsIdempotent drops an already-resolved promise twice; neither
// cancel nor a repeated cancel should panic.
func TestCancelIsIdempotent(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p := Fulfilled(1)
		p.node.cancel()
		p.node.cancel()
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}
