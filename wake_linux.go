//go:build linux

package turnloop

import (
	"golang.org/x/sys/unix"
)

// wakeChannel lets notifyAsync interrupt a blocked reactor.wait from another
// goroutine, grounded on the teacher's wakeup_linux.go (there: eventfd for
// PostQueuedCompletionStatus-style wakeups; here: the reactor's own readable
// registration).
type wakeChannel struct {
	fd int
}

func newWakeChannel() (*wakeChannel, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeChannel{fd: fd}, nil
}

func (w *wakeChannel) readFD() int { return w.fd }

func (w *wakeChannel) signal() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(w.fd, buf[:])
}

func (w *wakeChannel) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeChannel) close() error {
	return unix.Close(w.fd)
}
