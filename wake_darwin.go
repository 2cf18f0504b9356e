//go:build darwin

package turnloop

import (
	"golang.org/x/sys/unix"
)

// wakeChannel emulates the Linux eventfd wake mechanism with a self-pipe,
// grounded on the teacher's wakeup_darwin.go (kqueue has no eventfd
// equivalent).
type wakeChannel struct {
	readFd, writeFd int
}

// newWakeChannel uses unix.Pipe rather than Pipe2: Darwin's BSD-derived
// pipe(2) has no atomic CLOEXEC/NONBLOCK variant, so both flags are applied
// afterwards via fcntl, the same two-step the teacher's wakeup_darwin.go
// uses.
func newWakeChannel() (*wakeChannel, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	return &wakeChannel{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *wakeChannel) readFD() int { return w.readFd }

func (w *wakeChannel) signal() {
	_, _ = unix.Write(w.writeFd, []byte{1})
}

func (w *wakeChannel) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeChannel) close() error {
	_ = unix.Close(w.writeFd)
	return unix.Close(w.readFd)
}
