package turnloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestListenerAcceptsClientsInFIFOOrder drives the package's TCP accept
// path end to end: an ephemeral-port listener, four clients connected one
// after another from the parent loop, each sending a one-byte tag that a
// Spawn'd worker first wrote to its socketpair, and a verification that each
// is accepted exactly once, in FIFO order, with the listener remaining
// acceptable after each hand-out.
func TestListenerAcceptsClientsInFIFOOrder(t *testing.T) {
	err := Run(func(ws WaitScope) (Promise[struct{}], error) {
		addr, aerr := ParseAddress("127.0.0.1:0")
		require.NoError(t, aerr)
		ln, lerr := Listen(ws.loop, addr)
		require.NoError(t, lerr)
		defer ln.Close()

		boundAddr, perr := ln.Addr()
		require.NoError(t, perr)

		const clients = 4
		var joins []OSThreadJoin
		for i := 0; i < clients; i++ {
			tag := byte('A' + i)
			join, fromWorker, serr := Spawn(ws.loop, func(cws WaitScope, child *Stream) error {
				_, werr := Wait(cws, child.Write([]byte{tag}))
				return werr
			})
			require.NoError(t, serr)
			joins = append(joins, join)
			defer fromWorker.Close()

			conn, cerr := Wait(ws, boundAddr.Connect(ws.loop))
			require.NoError(t, cerr)
			defer conn.Close()

			tagBuf := make([]byte, 1)
			_, rerr := Wait(ws, fromWorker.Read(tagBuf))
			require.NoError(t, rerr)
			_, werr := Wait(ws, conn.Write(tagBuf))
			require.NoError(t, werr)
		}

		var gotOrder []byte
		for i := 0; i < clients; i++ {
			peer, perr := Wait(ws, ln.Accept())
			require.NoError(t, perr)
			buf := make([]byte, 1)
			_, rerr := Wait(ws, peer.Read(buf))
			require.NoError(t, rerr)
			gotOrder = append(gotOrder, buf[0])
			require.NoError(t, peer.Close())
		}

		require.Equal(t, []byte("ABCD"), gotOrder)
		for _, j := range joins {
			require.NoError(t, j.Wait())
		}
		return Fulfilled(struct{}{}), nil
	})
	require.NoError(t, err)
}
