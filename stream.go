package turnloop

import "golang.org/x/sys/unix"

// Stream is an asynchronous byte stream over a non-blocking unix file
// descriptor (a TCP connection, a UNIX socketpair end, ...). Its async
// methods suspend, via the owning Loop's reactor, only when the underlying
// syscall would otherwise block.
type Stream struct {
	loop   *Loop
	fd     int
	closed bool
}

func newStream(l *Loop, fd int) *Stream {
	return &Stream{loop: l, fd: fd}
}

// Fd exposes the raw descriptor, for callers that need it for something the
// package doesn't wrap directly (e.g. SO_ERROR inspection during connect).
func (s *Stream) Fd() int { return s.fd }

// TryRead loops non-blocking read attempts into buf until minBytes have
// accumulated or EOF is hit, suspending on the reactor whenever a read would
// otherwise block. The resolved count may be less than minBytes if the peer
// closed the stream first; that is not an error (contrast Read).
func (s *Stream) TryRead(buf []byte, minBytes int) Promise[int] {
	p, f := NewPromiseAndFulfiller[int](s.loop)
	pending := new(func())
	s.attemptRead(buf, 0, minBytes, f, pending)
	return Promise[int]{node: &wrapperNode{
		inner: p.node,
		dropper: func() {
			if *pending != nil {
				(*pending)()
			}
		},
	}}
}

func (s *Stream) attemptRead(buf []byte, got, minBytes int, f Fulfiller[int], pending *func()) {
	for got < minBytes {
		n, err := readFD(s.fd, buf[got:])
		if err == nil {
			if n == 0 {
				break // EOF
			}
			got += n
			continue
		}
		if isEINTR(err) {
			continue
		}
		if isEAGAIN(err) {
			cancel, rerr := s.loop.reactor.notifyWhenReadable(s.fd, func(error) {
				*pending = nil
				// A hangup/error notification is settled by the next read
				// itself: it returns the remaining data, then 0 at EOF, or
				// the socket's pending error.
				s.attemptRead(buf, got, minBytes, f, pending)
			})
			if rerr != nil {
				f.Reject(&IOError{Op: "read: register", Cause: rerr})
				return
			}
			*pending = cancel
			return
		}
		f.Reject(&IOError{Op: "read", Cause: err})
		return
	}
	f.Fulfill(got)
}

// Read fills buf completely, or returns *PrematureEOFError if the peer
// closes the stream having sent fewer than len(buf) bytes.
func (s *Stream) Read(buf []byte) Promise[int] {
	inner := s.TryRead(buf, len(buf))
	p, f := NewPromiseAndFulfiller[int](s.loop)
	inner.node.onReady(s.loop, func() {
		v, err := inner.node.get()
		if err != nil {
			f.Reject(err)
			return
		}
		n := v.(int)
		if n < len(buf) {
			f.Reject(&PrematureEOFError{Got: n, Want: len(buf)})
			return
		}
		f.Fulfill(n)
	})
	return Promise[int]{node: &wrapperNode{
		inner: p.node,
		dropper: func() {
			inner.node.cancel()
		},
	}}
}

// Write writes buf completely, suspending on partial writes until fd is
// writable again.
func (s *Stream) Write(buf []byte) Promise[int] {
	p, f := NewPromiseAndFulfiller[int](s.loop)
	pending := new(func())
	s.writeFull(buf, 0, f, pending)
	return Promise[int]{node: &wrapperNode{
		inner: p.node,
		dropper: func() {
			if *pending != nil {
				(*pending)()
			}
		},
	}}
}

func (s *Stream) writeFull(buf []byte, sent int, f Fulfiller[int], pending *func()) {
	if sent == len(buf) {
		f.Fulfill(sent)
		return
	}
	for {
		n, err := writeFD(s.fd, buf[sent:])
		if err == nil {
			sent += n
			if sent == len(buf) {
				f.Fulfill(sent)
				return
			}
			continue
		}
		if isEINTR(err) {
			continue
		}
		if isEAGAIN(err) {
			cancel, rerr := s.loop.reactor.notifyWhenWritable(s.fd, func(ioErr error) {
				*pending = nil
				if ioErr != nil {
					f.Reject(&IOError{Op: "write", Cause: ioErr})
					return
				}
				s.writeFull(buf, sent, f, pending)
			})
			if rerr != nil {
				f.Reject(&IOError{Op: "write: register", Cause: rerr})
				return
			}
			*pending = cancel
			return
		}
		f.Reject(&IOError{Op: "write", Cause: err})
		return
	}
}

// TryClone duplicates the underlying descriptor (via dup(2)) so the two
// Streams can be read and written independently (e.g. handing the read half
// to one consumer and the write half to another), each closeable on its own
// schedule.
func (s *Stream) TryClone() (*Stream, error) {
	dup, err := unix.Dup(s.fd)
	if err != nil {
		return nil, &IOError{Op: "try_clone", Cause: err}
	}
	return newStream(s.loop, dup), nil
}

// Close releases the descriptor. It does not cancel in-flight Read/Write
// promises or release their reactor registrations, matching the
// structural-cancellation model: cancel the promise first if you want a
// clean drop.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return closeFD(s.fd)
}
