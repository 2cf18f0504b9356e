package turnloop

import "runtime"

// hub is the two-state (Waiting/Resolved) shared cell backing a
// Fulfiller/Promise pair, grounded on spec's fulfiller-hub split and the
// teacher's pattern of a small internal struct shared between a public
// producer and consumer handle.
type hub struct {
	loop *Loop

	resolved bool
	val      any
	err      error

	waiting bool
	cb      func()

	armed    Handle
	hasArmed bool
}

func (h *hub) resolve(val any, err error) {
	if h.resolved {
		return
	}
	h.resolved = true
	h.val, h.err = val, err
	if h.waiting {
		h.armed = h.loop.armBreadthFirst(h.fire(h.cb))
		h.hasArmed = true
	}
}

// fire wraps cb so that the armed event, once Turn has run and released it,
// is no longer cancelled by a later cancel.
func (h *hub) fire(cb func()) func() {
	return func() {
		h.hasArmed = false
		cb()
	}
}

func (h *hub) onReady(l *Loop, cb func()) {
	h.loop = l
	if h.resolved {
		if h.hasArmed {
			l.cancelArmed(h.armed)
		}
		h.armed = l.armDepthFirst(h.fire(cb))
		h.hasArmed = true
		return
	}
	h.waiting = true
	h.cb = cb
}

func (h *hub) get() (any, error) { return h.val, h.err }

func (h *hub) cancel() {
	if h.hasArmed {
		h.loop.cancelArmed(h.armed)
		h.hasArmed = false
	}
	h.waiting = false
}

// Fulfiller is the producer half of a promise created via
// NewPromiseAndFulfiller. Exactly one of Fulfill, Reject or Drop must be
// called; calling Fulfill or Reject after any of the three has been called
// is a programming error and fatalf's (spec'd fatal condition: reusing a
// consumed fulfiller), while Drop after resolution is a no-op.
type Fulfiller[T any] struct {
	h        *hub
	dropped  *bool
	sentinel *fulfillerSentinel
}

// Fulfill resolves the paired promise with v.
func (f Fulfiller[T]) Fulfill(v T) {
	if *f.dropped {
		fatalf("fulfiller already resolved or dropped")
	}
	*f.dropped = true
	f.h.resolve(v, nil)
}

// Reject resolves the paired promise with err.
func (f Fulfiller[T]) Reject(err error) {
	if *f.dropped {
		fatalf("fulfiller already resolved or dropped")
	}
	*f.dropped = true
	f.h.resolve(nil, err)
}

// Drop resolves the paired promise with a broken-promise error, the
// explicit idiomatic stand-in for Go's lack of deterministic destructors
// (see NewPromiseAndFulfiller's SetFinalizer safety net for the implicit
// case).
func (f Fulfiller[T]) Drop() {
	if *f.dropped {
		return
	}
	*f.dropped = true
	f.h.loop.logBrokenPromise(f.h)
	f.h.resolve(nil, &BrokenPromiseError{})
}

// NewPromiseAndFulfiller returns a linked (Promise[T], Fulfiller[T]) pair.
// If the fulfiller is garbage collected without Fulfill/Reject/Drop ever
// being called, a best-effort finalizer routes a broken-promise resolution
// through the loop's notifyAsync, since Go gives no stronger guarantee than
// "eventually, maybe" for finalizers — callers that need a timely result
// should call Drop explicitly rather than relying on this safety net.
func NewPromiseAndFulfiller[T any](l *Loop) (Promise[T], Fulfiller[T]) {
	h := &hub{loop: l}
	dropped := new(bool)
	f := Fulfiller[T]{h: h, dropped: dropped}

	sentinel := new(fulfillerSentinel)
	sentinel.hub = h
	sentinel.dropped = dropped
	runtime.SetFinalizer(sentinel, finalizeFulfiller)
	f.sentinel = sentinel

	return Promise[T]{node: h}, f
}

// fulfillerSentinel is the object SetFinalizer actually tracks; Fulfiller
// itself is a small value type copied freely by callers; tying the
// finalizer to it directly would fire the moment any copy went out of
// scope.
type fulfillerSentinel struct {
	hub     *hub
	dropped *bool
}

func finalizeFulfiller(s *fulfillerSentinel) {
	if *s.dropped {
		return
	}
	*s.dropped = true
	l := s.hub.loop
	h := s.hub
	l.notifyAsync(func() {
		l.logBrokenPromise(h)
		h.resolve(nil, &BrokenPromiseError{})
	})
}
