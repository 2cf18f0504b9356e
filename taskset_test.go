package turnloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSetRoutesErrorToHandler(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		ts := NewTaskSet(ws.loop)
		sentinel := errors.New("task failed")
		var got error
		ts.OnError(func(e error) { got = e })

		ts.Add(ThenMap(Rejected[int](sentinel), func(int) (struct{}, error) {
			return struct{}{}, nil
		}))

		for ts.Len() > 0 {
			ws.loop.Turn()
		}
		assert.ErrorIs(t, got, sentinel)
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestTaskSetCloseCancelsOutstanding(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		ts := NewTaskSet(ws.loop)
		p, _ := NewPromiseAndFulfiller[struct{}](ws.loop)
		ts.Add(p)
		assert.Equal(t, 1, ts.Len())
		ts.Close()
		assert.Equal(t, 0, ts.Len())
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}
