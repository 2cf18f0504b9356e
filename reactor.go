package turnloop

import (
	"container/heap"
	"time"
)

// observer is the reactor's per-fd bookkeeping: at most one pending
// readability and one pending writability callback, grounded on the
// teacher's fdInfo but split into two independent slots since a stream can
// have a read and a write both outstanding on the same fd simultaneously.
type observer struct {
	fd         int
	registered bool // true once added to the platform poller
	readCB     func(error)
	writeCB    func(error)
}

// timerEntry is one scheduled wake-up, ordered by deadline in a min-heap.
type timerEntry struct {
	deadline time.Time
	cb       func()
	index    int
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Reactor bridges OS readiness (and scheduled timers) into the owning Loop's
// event list. It holds the platform poller, the cross-goroutine wake
// channel, a handle table of fd observers, and the timer heap. None of its
// state needs synchronization: a Reactor is only ever touched from its
// Loop's own goroutine (the wake channel is the sole exception, and it is a
// plain OS pipe/eventfd, not shared Go state).
type Reactor struct {
	loop   *Loop
	poller platformPoller
	wakeCh *wakeChannel

	observers  *handleTable[observer]
	fdToHandle map[int]Handle

	timers timerHeap
}

func newReactor(l *Loop) (*Reactor, error) {
	poller, err := newPlatformPoller()
	if err != nil {
		return nil, err
	}
	wc, err := newWakeChannel()
	if err != nil {
		_ = poller.close()
		return nil, err
	}
	r := &Reactor{
		loop:       l,
		poller:     poller,
		wakeCh:     wc,
		observers:  newHandleTable[observer](),
		fdToHandle: make(map[int]Handle),
	}
	if err := poller.add(wc.readFD(), true, false); err != nil {
		_ = wc.close()
		_ = poller.close()
		return nil, err
	}
	return r, nil
}

func (r *Reactor) ensureObserver(fd int) Handle {
	if h, ok := r.fdToHandle[fd]; ok {
		return h
	}
	h := r.observers.push(observer{fd: fd})
	r.fdToHandle[fd] = h
	return h
}

// syncInterest pushes the observer's current (readCB != nil, writeCB != nil)
// state to the platform poller, registering, modifying, or removing the fd
// as needed. If registration fails, the freshly allocated handle is
// reclaimed immediately rather than leaking a dead observer slot.
func (r *Reactor) syncInterest(h Handle) error {
	obs := r.observers.index(h)
	want := obs.readCB != nil || obs.writeCB != nil
	switch {
	case !want && obs.registered:
		err := r.poller.remove(obs.fd)
		obs.registered = false
		delete(r.fdToHandle, obs.fd)
		r.observers.remove(h)
		return err
	case want && !obs.registered:
		if err := r.poller.add(obs.fd, obs.readCB != nil, obs.writeCB != nil); err != nil {
			delete(r.fdToHandle, obs.fd)
			r.observers.remove(h)
			return err
		}
		obs.registered = true
		return nil
	case want && obs.registered:
		return r.poller.modify(obs.fd, obs.readCB != nil, obs.writeCB != nil)
	default:
		return nil
	}
}

// notifyWhenReadable arms cb to run (with a non-nil error only on a poll
// error/hangup) the next time fd is readable. Registering a second callback
// on an fd before the first one has fired is a programming error (the
// caller dropped the canceler instead of calling it) and fatalf's. Returns
// a canceler.
func (r *Reactor) notifyWhenReadable(fd int, cb func(error)) (func(), error) {
	h := r.ensureObserver(fd)
	obs := r.observers.index(h)
	if obs.readCB != nil {
		fatalf("replacing an armed readability observer for fd %d", fd)
	}
	obs.readCB = cb
	if err := r.syncInterest(h); err != nil {
		return nil, err
	}
	return func() {
		if obs := r.observers.index(h); obs != nil {
			obs.readCB = nil
			_ = r.syncInterest(h)
		}
	}, nil
}

func (r *Reactor) notifyWhenWritable(fd int, cb func(error)) (func(), error) {
	h := r.ensureObserver(fd)
	obs := r.observers.index(h)
	if obs.writeCB != nil {
		fatalf("replacing an armed writability observer for fd %d", fd)
	}
	obs.writeCB = cb
	if err := r.syncInterest(h); err != nil {
		return nil, err
	}
	return func() {
		if obs := r.observers.index(h); obs != nil {
			obs.writeCB = nil
			_ = r.syncInterest(h)
		}
	}, nil
}

// afterDelay schedules cb to run once, no earlier than d from now. The
// returned *timerEntry is the cancellation token for cancelTimer.
func (r *Reactor) afterDelay(d time.Duration, cb func()) *timerEntry {
	e := &timerEntry{deadline: time.Now().Add(d), cb: cb}
	heap.Push(&r.timers, e)
	return e
}

func (r *Reactor) cancelTimer(e *timerEntry) {
	if e.index < 0 || e.canceled {
		return
	}
	e.canceled = true
	heap.Remove(&r.timers, e.index)
}

// nextTimeoutMs computes the PollIO/Kevent timeout: 0 if a timer has already
// expired, the millisecond distance to the next timer, or -1 (block
// indefinitely) if there are none.
func (r *Reactor) nextTimeoutMs() int {
	for len(r.timers) > 0 && r.timers[0].canceled {
		heap.Pop(&r.timers)
	}
	if len(r.timers) == 0 {
		return -1
	}
	d := time.Until(r.timers[0].deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1 // round sub-millisecond waits up rather than busy-polling with 0
	}
	return int(ms)
}

// fireExpiredTimers arms a loop event for every timer whose deadline has
// passed, breadth-first (this readiness originates outside the currently
// firing event, same as I/O).
func (r *Reactor) fireExpiredTimers() {
	now := time.Now()
	for len(r.timers) > 0 {
		top := r.timers[0]
		if top.canceled {
			heap.Pop(&r.timers)
			continue
		}
		if top.deadline.After(now) {
			break
		}
		heap.Pop(&r.timers)
		cb := top.cb
		r.loop.armBreadthFirst(cb)
	}
}

// wait blocks until there is at least one armed loop event's worth of new
// readiness: I/O, an expired timer, or a cross-goroutine wake. It never
// blocks longer than the next timer deadline. The returned bool is true
// exactly when the poll returned because of the loop's own wake channel
// (Loop.notifyAsync), false for ordinary FD/timer readiness — see
// SPEC_FULL.md Open Question #2.
func (r *Reactor) wait() (bool, error) {
	woken := false
	timeout := r.nextTimeoutMs()
	err := r.poller.wait(timeout, func(fd int, readable, writable, errored bool) {
		if fd == r.wakeCh.readFD() {
			r.wakeCh.drain()
			woken = true
			return
		}
		h, ok := r.fdToHandle[fd]
		if !ok {
			r.loop.logSpurious(fd, "readiness for unregistered fd")
			return
		}
		obs := r.observers.index(h)
		if obs == nil {
			return
		}
		var ioErr error
		if errored {
			ioErr = ErrPrematureEOF
		}
		if readable && obs.readCB != nil {
			cb := obs.readCB
			obs.readCB = nil
			r.loop.armBreadthFirst(func() { cb(ioErr) })
		}
		if writable && obs.writeCB != nil {
			cb := obs.writeCB
			obs.writeCB = nil
			r.loop.armBreadthFirst(func() { cb(ioErr) })
		}
		_ = r.syncInterest(h)
	})
	r.fireExpiredTimers()
	return woken, err
}

// wake interrupts a concurrently blocked wait from another goroutine; the
// only Reactor method safe to call off the loop's own goroutine (see
// Loop.notifyAsync).
func (r *Reactor) wake() { r.wakeCh.signal() }

func (r *Reactor) close() error {
	_ = r.wakeCh.close()
	return r.poller.close()
}
