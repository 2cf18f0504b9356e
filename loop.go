package turnloop

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// eventNode is the record carried by the loop's event handle table: a
// one-shot callback plus the doubly-linked list pointers forming the
// armed list. A node with no callback is either the head sentinel or has
// just been consumed by Turn.
type eventNode struct {
	cb         func()
	prev, next Handle
}

var loopIDCounter atomic.Uint64

// Loop is the per-goroutine scheduler: a handle table of armed events,
// a depth-first insertion point, and the reactor port it drives between
// turns. A Loop must never be touched from a goroutine other than the one
// it was installed on (see Run / RunOn).
type Loop struct {
	id uint64

	events  *handleTable[eventNode]
	head    Handle
	dfPoint Handle

	reactor *Reactor

	goroutineID uint64
	waitDepth   int // guards nested wait()

	metrics *metrics
	logger  *pkgLogger

	// asyncMu/asyncPending back notifyAsync: the only way code running on
	// a different goroutine (a GC finalizer, a worker's peer loop) may
	// reach into this loop. Entries are drained and run on the loop's own
	// goroutine when the wake channel fires.
	asyncMu      sync.Mutex
	asyncPending []func()

	closed bool
}

// NewLoop constructs a Loop and its reactor port. The caller drives it via
// RunOn (Run constructs a Loop of its own).
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg := resolveLoopOptions(opts)

	l := &Loop{
		id:     loopIDCounter.Add(1),
		events: newHandleTable[eventNode](),
		logger: cfg.logger,
	}
	if cfg.metricsEnabled {
		l.metrics = newMetrics()
	}

	l.head = l.events.push(eventNode{})
	n := l.events.index(l.head)
	n.prev, n.next = l.head, l.head
	l.dfPoint = l.head

	reactor, err := newReactor(l)
	if err != nil {
		return nil, &IOError{Op: "reactor init", Cause: err}
	}
	l.reactor = reactor

	return l, nil
}

// insertAfter splices h into the circular list immediately after at.
func (l *Loop) insertAfter(at, h Handle) {
	n := l.events.index(h)
	a := l.events.index(at)
	n.prev = at
	n.next = a.next
	l.events.index(a.next).prev = h
	a.next = h
}

// unlink removes h from the circular list; h itself is left with zeroed
// links (unlinked).
func (l *Loop) unlink(h Handle) {
	n := l.events.index(h)
	if n.prev == nullHandle && n.next == nullHandle {
		return // already unlinked
	}
	l.events.index(n.prev).next = n.next
	l.events.index(n.next).prev = n.prev
	n.prev, n.next = nullHandle, nullHandle
}

func (l *Loop) newEventNode(cb func()) Handle {
	return l.events.push(eventNode{cb: cb})
}

// armDepthFirst inserts cb immediately after the current depth-first
// insertion point and advances that point to the new node, so synchronous
// continuations of the currently firing event run contiguously.
func (l *Loop) armDepthFirst(cb func()) Handle {
	h := l.newEventNode(cb)
	l.insertAfter(l.dfPoint, h)
	l.dfPoint = h
	return h
}

// armBreadthFirst appends cb at the tail, for externally originated
// readiness (I/O, timers, cross-goroutine wake).
func (l *Loop) armBreadthFirst(cb func()) Handle {
	h := l.newEventNode(cb)
	tail := l.events.index(l.head).prev
	l.insertAfter(tail, h)
	return h
}

// cancelArmed unlinks and releases an event previously returned by
// armDepthFirst/armBreadthFirst, if it has not already fired.
func (l *Loop) cancelArmed(h Handle) {
	l.unlink(h)
	l.events.remove(h)
}

// Turn fires at most one armed event and returns whether it did.
func (l *Loop) Turn() bool {
	first := l.events.index(l.head).next
	if first == l.head {
		return false
	}
	l.dfPoint = first

	node := l.events.index(first)
	cb := node.cb
	node.cb = nil

	start := l.metrics.start()
	cb()
	l.metrics.record(start)

	l.unlink(first)
	l.events.remove(first)
	l.dfPoint = l.head
	return true
}

// notifyAsync is the only goroutine-safe entry point into a Loop. fn runs
// on the loop's own goroutine the next time it drains its wake channel
// (immediately, if it is currently blocked in reactor.wait).
func (l *Loop) notifyAsync(fn func()) {
	l.asyncMu.Lock()
	l.asyncPending = append(l.asyncPending, fn)
	l.asyncMu.Unlock()
	l.reactor.wake()
}

func (l *Loop) drainAsync() {
	l.asyncMu.Lock()
	pending := l.asyncPending
	l.asyncPending = nil
	l.asyncMu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// WaitScope is a marker token obtainable only at top level (from Run),
// gating the blocking Wait operation: Wait is illegal from within a
// promise continuation.
type WaitScope struct {
	loop *Loop
}

// Wait blocks, alternating Turn with reactor waits, until p settles, then
// returns its result. Calling Wait from within a firing event (nested
// wait) is a fatal programmer error, detected via the loop's wait-depth
// counter; calling it from a goroutine other than the loop's own is
// likewise fatal, detected via the goroutine identity guard.
func Wait[T any](ws WaitScope, p Promise[T]) (T, error) {
	l := ws.loop
	var zero T
	if l.waitDepth > 0 {
		fatalf("nested wait() from within a promise continuation")
	}
	if getGoroutineID() != l.goroutineID {
		fatalf("wait() called from a goroutine other than the loop's own")
	}

	fired := false
	p.node.onReady(l, func() { fired = true })

	l.waitDepth++
	for !fired {
		if !l.Turn() {
			l.drainAsync()
			if fired {
				break
			}
			if _, err := l.reactor.wait(); err != nil {
				l.waitDepth--
				return zero, &IOError{Op: "reactor wait", Cause: err}
			}
		}
	}
	l.waitDepth--

	v, err := p.node.get()
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// loopRegistry maps goroutine IDs to the Loop currently installed there,
// implementing spec's "thread-local current event loop" with Go's nearest
// equivalent: a goroutine pinned to its OS thread via runtime.LockOSThread
// (see Run), indexed by the goroutine-id trick below.
var loopRegistry sync.Map // map[uint64]*Loop

// Run installs l as the current loop for a freshly locked OS thread, runs
// entry to produce a terminating promise, waits on it, tears the loop
// down, and returns the entrypoint's result. Reentrant installation on the
// same goroutine is forbidden.
func Run(entry func(WaitScope) (Promise[struct{}], error)) error {
	l, err := NewLoop()
	if err != nil {
		return err
	}
	return RunOn(l, entry)
}

// RunOn is like Run but reuses a caller-constructed Loop (e.g. one built
// with options), letting the caller configure it before driving it.
func RunOn(l *Loop, entry func(WaitScope) (Promise[struct{}], error)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := getGoroutineID()
	if _, already := loopRegistry.Load(gid); already {
		fatalf("a loop is already installed on this goroutine")
	}
	l.goroutineID = gid
	loopRegistry.Store(gid, l)
	defer func() {
		loopRegistry.Delete(gid)
		l.closed = true
		_ = l.reactor.close()
	}()

	ws := WaitScope{loop: l}
	p, err := entry(ws)
	if err != nil {
		return err
	}
	_, err = Wait(ws, p)
	return err
}

// getGoroutineID parses the current goroutine's id out of runtime.Stack,
// the same trick used by the teacher to implement a thread-affinity guard
// without a true OS thread-local.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
