package turnloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterDelayMsResolves(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		_, err := Wait(ws, AfterDelayMs(ws.loop, 1))
		require.NoError(t, err)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestAfterDelayMsCancelRemovesTimer confirms dropping a delay promise
// before it fires actually removes the timer entry, rather than leaving a
// dangling heap slot that would fire into a dead continuation.
func TestAfterDelayMsCancelRemovesTimer(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		p := AfterDelayMs(ws.loop, 10_000)
		before := len(ws.loop.reactor.timers)
		assert.Equal(t, 1, before)
		p.node.cancel()
		after := len(ws.loop.reactor.timers)
		assert.Equal(t, 0, after)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}
