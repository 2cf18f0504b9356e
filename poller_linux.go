//go:build linux

package turnloop

import (
	"golang.org/x/sys/unix"
)

// platformPoller is the minimal interface reactor.go drives; poller_linux.go
// and poller_darwin.go each provide one implementation, simplified from the
// teacher's FastPoller down to single-goroutine use: a Loop (and therefore
// its Reactor) is never touched from more than one goroutine, so every lock
// and atomic in the teacher's version is dropped.
type platformPoller interface {
	add(fd int, readable, writable bool) error
	modify(fd int, readable, writable bool) error
	remove(fd int) error
	wait(timeoutMs int, dispatch func(fd int, readable, writable, errored bool)) error
	close() error
}

const maxPollEvents = 256

type epollPoller struct {
	epfd     int
	eventBuf [maxPollEvents]unix.EpollEvent
}

func newPlatformPoller() (platformPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd}, nil
}

// epollMask always includes EPOLLET: the reactor is edge-triggered per
// spec, so every caller (stream reads/writes, listener accepts) must drive
// its syscall in a loop until EWOULDBLOCK rather than relying on a level-
// triggered re-notification.
func epollMask(readable, writable bool) uint32 {
	m := uint32(unix.EPOLLET)
	if readable {
		m |= unix.EPOLLIN
	}
	if writable {
		m |= unix.EPOLLOUT
	}
	return m
}

func (p *epollPoller) add(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) modify(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) wait(timeoutMs int, dispatch func(fd int, readable, writable, errored bool)) error {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		readable := ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0
		writable := ev.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0
		errored := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		dispatch(int(ev.Fd), readable, writable, errored)
	}
	return nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
