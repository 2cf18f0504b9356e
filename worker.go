package turnloop

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// OSThreadJoin lets the spawning side wait (from outside its own event
// loop — this is a plain channel, not a Promise, since a worker's OS thread
// outlives any single loop's lifetime) for a Spawn'd worker's entrypoint to
// return, and retrieve its error.
type OSThreadJoin struct {
	done chan error
}

// Wait blocks until the worker's entrypoint returns.
func (j OSThreadJoin) Wait() error {
	return <-j.done
}

// Spawn creates a UNIX socketpair, starts entry on a freshly LockOSThread'd
// goroutine running its own Loop with the child end, and returns an
// OSThreadJoin plus the parent's Stream over the other end as soon as the
// child goroutine has built its Loop (no promise for the Stream half: the
// pair is usable as a plain return value).
//
// This is the package's worker-thread primitive: each side of the pair gets
// its own independent event loop, and the socketpair Streams are the channel
// between a Spawn'd worker and its parent.
func Spawn(parentLoop *Loop, entry func(WaitScope, *Stream) error) (OSThreadJoin, *Stream, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return OSThreadJoin{}, nil, &IOError{Op: "spawn: socketpair", Cause: err}
	}
	parentFD, childFD := fds[0], fds[1]

	// unix.Socketpair has no atomic CLOEXEC flag portable across Linux and
	// Darwin, so both ends are marked close-on-exec explicitly right after
	// creation, the same two-step wake_darwin.go uses for its self-pipe.
	unix.CloseOnExec(parentFD)
	unix.CloseOnExec(childFD)

	if err := setNonblock(parentFD); err != nil {
		_ = unix.Close(parentFD)
		_ = unix.Close(childFD)
		return OSThreadJoin{}, nil, &IOError{Op: "spawn: nonblock", Cause: err}
	}

	readyCh := make(chan error, 1)
	join := OSThreadJoin{done: make(chan error, 1)}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		l, err := NewLoop()
		if err != nil {
			_ = unix.Close(childFD)
			readyCh <- err
			join.done <- err
			return
		}
		if err := setNonblock(childFD); err != nil {
			_ = unix.Close(childFD)
			readyCh <- &IOError{Op: "spawn: child nonblock", Cause: err}
			join.done <- err
			return
		}
		readyCh <- nil

		runErr := RunOn(l, func(ws WaitScope) (Promise[struct{}], error) {
			child := newStream(l, childFD)
			if err := entry(ws, child); err != nil {
				return Promise[struct{}]{}, err
			}
			return Fulfilled(struct{}{}), nil
		})
		join.done <- runErr
	}()

	if err := <-readyCh; err != nil {
		_ = unix.Close(parentFD)
		return OSThreadJoin{}, nil, err
	}

	return join, newStream(parentLoop, parentFD), nil
}
