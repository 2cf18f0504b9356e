package turnloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSpawnEchoRoundTrip spawns a worker whose entrypoint echoes back
// whatever it reads, and confirms the parent-side Stream observes the
// reply — the package's canonical cross-thread scenario.
func TestSpawnEchoRoundTrip(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		join, parent, serr := Spawn(ws.loop, func(cws WaitScope, child *Stream) error {
			buf := make([]byte, 5)
			if _, err := Wait(cws, child.Read(buf)); err != nil {
				return err
			}
			_, err := Wait(cws, child.Write(buf))
			return err
		})
		require.NoError(t, serr)

		_, err := Wait(ws, parent.Write([]byte("hello")))
		require.NoError(t, err)

		reply := make([]byte, 5)
		n, err := Wait(ws, parent.Read(reply))
		require.NoError(t, err)
		require.Equal(t, 5, n)
		require.Equal(t, "hello", string(reply))

		require.NoError(t, parent.Close())
		require.NoError(t, join.Wait())
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

// TestStreamReadPrematureEOF confirms a short read (peer closed before
// len(buf) bytes arrived) surfaces *PrematureEOFError rather than a
// truncated success.
func TestStreamReadPrematureEOF(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		join, parent, serr := Spawn(ws.loop, func(cws WaitScope, child *Stream) error {
			_, err := Wait(cws, child.Write([]byte("ab")))
			if err != nil {
				return err
			}
			return child.Close()
		})
		require.NoError(t, serr)

		buf := make([]byte, 5)
		_, err := Wait(ws, parent.Read(buf))
		var eofErr *PrematureEOFError
		require.ErrorAs(t, err, &eofErr)
		require.Equal(t, 2, eofErr.Got)
		require.Equal(t, 5, eofErr.Want)

		require.NoError(t, parent.Close())
		require.NoError(t, join.Wait())
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}

func TestStreamTryCloneIndependentHalves(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		join, parent, serr := Spawn(ws.loop, func(cws WaitScope, child *Stream) error {
			buf := make([]byte, 3)
			_, err := Wait(cws, child.Read(buf))
			if err != nil {
				return err
			}
			_, err = Wait(cws, child.Write(buf))
			return err
		})
		require.NoError(t, serr)

		writeHalf, err := parent.TryClone()
		require.NoError(t, err)

		_, err = Wait(ws, writeHalf.Write([]byte("abc")))
		require.NoError(t, err)

		reply := make([]byte, 3)
		_, err = Wait(ws, parent.Read(reply))
		require.NoError(t, err)
		require.Equal(t, "abc", string(reply))

		require.NoError(t, writeHalf.Close())
		require.NoError(t, parent.Close())
		require.NoError(t, join.Wait())
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}
