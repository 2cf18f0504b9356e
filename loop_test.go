package turnloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTurnFiresExactlyOneEvent verifies Loop.Turn's core contract: each call
// fires at most one armed event, reporting false once the list is empty.
func TestTurnFiresExactlyOneEvent(t *testing.T) {
	l, err := NewLoop()
	require.NoError(t, err)

	var order []int
	l.armBreadthFirst(func() { order = append(order, 1) })
	l.armBreadthFirst(func() { order = append(order, 2) })

	assert.True(t, l.Turn())
	assert.Equal(t, []int{1}, order)
	assert.True(t, l.Turn())
	assert.Equal(t, []int{1, 2}, order)
	assert.False(t, l.Turn())
}

// TestDepthFirstArmingRunsContiguously checks that a synchronous
// continuation armed depth-first from within a firing event runs before any
// breadth-first (externally sourced) event queued earlier.
func TestDepthFirstArmingRunsContiguously(t *testing.T) {
	l, err := NewLoop()
	require.NoError(t, err)

	var order []string
	l.armBreadthFirst(func() { order = append(order, "external") })
	l.armDepthFirst(func() {
		order = append(order, "first")
		l.armDepthFirst(func() { order = append(order, "continuation") })
	})

	for l.Turn() {
	}
	assert.Equal(t, []string{"first", "continuation", "external"}, order)
}

// TestNestedWaitPanics asserts the fatal-programmer-error guard: calling
// Wait from within a promise continuation (rather than top level) panics.
func TestNestedWaitPanics(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p, f := NewPromiseAndFulfiller[struct{}](ws.loop)
		inner := ThenMap(Fulfilled(0), func(int) (struct{}, error) {
			assert.Panics(t, func() {
				_, _ = Wait(ws, Fulfilled(1))
			})
			return struct{}{}, nil
		})
		inner.node.onReady(ws.loop, func() { f.Fulfill(struct{}{}) })
		return p, nil
	})
	require.NoError(t, err)
}

func TestTimeoutAfterMsRejectsOnDeadline(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		_, never := NewPromiseAndFulfiller[int](ws.loop)
		raced := TimeoutAfterMs(ws.loop, never, 1)
		_, err := Wait(ws, raced)
		var timeoutErr *TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestTimeoutAfterMsLetsFastPromiseWin(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		raced := TimeoutAfterMs(ws.loop, Fulfilled("fast"), 5000)
		v, err := Wait(ws, raced)
		require.NoError(t, err)
		assert.Equal(t, "fast", v)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestStatsReportsTurnCount exercises the metrics ambient component with
// WithMetrics(true), and its nil-receiver default otherwise.
func TestStatsReportsTurnCount(t *testing.T) {
	l, err := NewLoop(WithMetrics(true))
	require.NoError(t, err)
	l.armBreadthFirst(func() {})
	l.armBreadthFirst(func() {})
	l.Turn()
	l.Turn()
	stats := l.Stats()
	assert.True(t, stats.Enabled)
	assert.EqualValues(t, 2, stats.Turns)

	disabled, err := NewLoop()
	require.NoError(t, err)
	assert.False(t, disabled.Stats().Enabled)
}
