//go:build darwin

package turnloop

import (
	"golang.org/x/sys/unix"
)

type platformPoller interface {
	add(fd int, readable, writable bool) error
	modify(fd int, readable, writable bool) error
	remove(fd int) error
	wait(timeoutMs int, dispatch func(fd int, readable, writable, errored bool)) error
	close() error
}

const maxPollEvents = 256

// kqueuePoller tracks, per fd, which of EVFILT_READ/EVFILT_WRITE are
// currently registered, since kqueue (unlike epoll) has no single combined
// "modify" call: changing the interest set means diffing and issuing
// EV_ADD/EV_DELETE per filter, grounded on the teacher's poller_darwin.go.
type kqueuePoller struct {
	kq       int
	eventBuf [maxPollEvents]unix.Kevent_t
	interest map[int]struct{ readable, writable bool }
}

func newPlatformPoller() (platformPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq, interest: make(map[int]struct{ readable, writable bool })}, nil
}

func (p *kqueuePoller) changelist(fd int, readable, writable bool, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if readable {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if writable {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func (p *kqueuePoller) add(fd int, readable, writable bool) error {
	changes := p.changelist(fd, readable, writable, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return err
		}
	}
	p.interest[fd] = struct{ readable, writable bool }{readable, writable}
	return nil
}

func (p *kqueuePoller) modify(fd int, readable, writable bool) error {
	cur := p.interest[fd]
	if del := p.changelist(fd, cur.readable && !readable, cur.writable && !writable, unix.EV_DELETE); len(del) > 0 {
		_, _ = unix.Kevent(p.kq, del, nil, nil)
	}
	if add := p.changelist(fd, readable && !cur.readable, writable && !cur.writable, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR); len(add) > 0 {
		if _, err := unix.Kevent(p.kq, add, nil, nil); err != nil {
			return err
		}
	}
	p.interest[fd] = struct{ readable, writable bool }{readable, writable}
	return nil
}

func (p *kqueuePoller) remove(fd int) error {
	cur := p.interest[fd]
	changes := p.changelist(fd, cur.readable, cur.writable, unix.EV_DELETE)
	if len(changes) > 0 {
		_, _ = unix.Kevent(p.kq, changes, nil, nil)
	}
	delete(p.interest, fd)
	return nil
}

func (p *kqueuePoller) wait(timeoutMs int, dispatch func(fd int, readable, writable, errored bool)) error {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64(timeoutMs%1000) * 1e6}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		errored := ev.Flags&unix.EV_ERROR != 0 || ev.Flags&unix.EV_EOF != 0
		readable := ev.Filter == unix.EVFILT_READ || errored
		writable := ev.Filter == unix.EVFILT_WRITE || errored
		dispatch(fd, readable, writable, errored)
	}
	return nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
