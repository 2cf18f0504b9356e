//go:build linux || darwin

package turnloop

import (
	"golang.org/x/sys/unix"
)

// closeFD, readFD and writeFD are thin wrappers over the raw syscalls,
// grounded on the teacher's fd_unix.go, kept as free functions shared by the
// stream, listener, address and worker code.
func closeFD(fd int) error {
	return unix.Close(fd)
}

func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func isEAGAIN(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func isEINTR(err error) bool {
	return err == unix.EINTR
}
