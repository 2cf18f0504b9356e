package turnloop

// promiseNode is the polymorphic evaluation unit described in spec §3/§4.3.
// Implementations are boxed behind the interface rather than a tagged
// union; the loop never inspects the concrete variant.
//
// onReady registers cb to run, via the owning loop, once the node's result
// becomes available. A node supports at most one registration; calling
// onReady again before the first has fired replaces it (the implementation
// is responsible for cancelling whatever it previously armed).
//
// get returns the settled result. It is only valid once cb from onReady
// has actually fired; calling it earlier is a programmer error.
//
// cancel releases everything this node (and its descendants) is holding:
// armed loop events, reactor registrations, child nodes. It must be
// idempotent, since dropping an already-resolved promise is a no-op.
type promiseNode interface {
	onReady(loop *Loop, cb func())
	get() (any, error)
	cancel()
}

// thenable is implemented by Promise[T] for every T, letting transformNode
// detect "the callback returned a further promise" without needing to know
// T at the point of detection (type-erased monadic flattening).
type thenable interface {
	promiseNode() promiseNode
}

// immediateNode holds a precomputed result.
type immediateNode struct {
	val any
	err error

	loop     *Loop
	armed    Handle
	hasArmed bool
}

func (n *immediateNode) onReady(l *Loop, cb func()) {
	if n.hasArmed {
		n.loop.cancelArmed(n.armed)
	}
	n.loop = l
	n.armed = l.armDepthFirst(func() {
		n.hasArmed = false // Turn releases the fired event itself
		cb()
	})
	n.hasArmed = true
}

func (n *immediateNode) get() (any, error) { return n.val, n.err }

func (n *immediateNode) cancel() {
	if n.hasArmed {
		n.loop.cancelArmed(n.armed)
		n.hasArmed = false
	}
}

// chainNode flattens a promise-of-promise: produced is the already-known
// inner promise a transformNode's callback returned.
type chainNode struct {
	produced promiseNode
}

func (n *chainNode) onReady(l *Loop, cb func()) { n.produced.onReady(l, cb) }
func (n *chainNode) get() (any, error)          { return n.produced.get() }
func (n *chainNode) cancel()                    { n.produced.cancel() }

// transformNode applies onSuccess/onError to inner's result once ready. The
// callback may return either a direct value or a further promise (detected
// via the thenable interface), in which case the node flattens into it,
// implementing spec's Chain behavior without a separate arming path.
type transformNode struct {
	inner     promiseNode
	onSuccess func(any) (any, error)
	onError   func(error) (any, error)

	flattened promiseNode
	result    any
	err       error
	cancelled bool
}

func (n *transformNode) onReady(l *Loop, cb func()) {
	n.inner.onReady(l, func() {
		val, err := n.inner.get()
		var out any
		var outErr error
		if err == nil {
			if n.onSuccess != nil {
				out, outErr = n.onSuccess(val)
			} else {
				out, outErr = val, nil
			}
		} else {
			if n.onError != nil {
				out, outErr = n.onError(err)
			} else {
				out, outErr = nil, err
			}
		}
		if outErr != nil {
			n.result, n.err = nil, outErr
			cb()
			return
		}
		if th, ok := out.(thenable); ok {
			n.flattened = &chainNode{produced: th.promiseNode()}
			n.flattened.onReady(l, cb)
			return
		}
		n.result, n.err = out, nil
		cb()
	})
}

func (n *transformNode) get() (any, error) {
	if n.flattened != nil {
		return n.flattened.get()
	}
	return n.result, n.err
}

func (n *transformNode) cancel() {
	if n.cancelled {
		return
	}
	n.cancelled = true
	if n.flattened != nil {
		n.flattened.cancel()
	}
	n.inner.cancel()
}

// exclusiveJoinNode resolves with whichever of a, b settles first; the
// loser is cancelled immediately, synchronously, on the winner's arrival.
type exclusiveJoinNode struct {
	a, b promiseNode

	won       bool
	result    any
	err       error
	cancelled bool
}

func (n *exclusiveJoinNode) onReady(l *Loop, cb func()) {
	n.a.onReady(l, func() { n.settle(0, cb) })
	n.b.onReady(l, func() { n.settle(1, cb) })
}

func (n *exclusiveJoinNode) settle(side int, cb func()) {
	if n.won {
		return
	}
	n.won = true
	if side == 0 {
		n.result, n.err = n.a.get()
		n.b.cancel()
	} else {
		n.result, n.err = n.b.get()
		n.a.cancel()
	}
	cb()
}

func (n *exclusiveJoinNode) get() (any, error) { return n.result, n.err }

func (n *exclusiveJoinNode) cancel() {
	if n.cancelled {
		return
	}
	n.cancelled = true
	if !n.won {
		n.a.cancel()
		n.b.cancel()
	}
}

// arrayJoinNode resolves to the ordered results of every node, or the
// first error, cancelling the remaining nodes on that first error.
type arrayJoinNode struct {
	nodes []promiseNode

	results   []any
	remaining int
	err       error
	done      bool
	cancelled bool
}

func (n *arrayJoinNode) onReady(l *Loop, cb func()) {
	n.results = make([]any, len(n.nodes))
	n.remaining = len(n.nodes)
	if len(n.nodes) == 0 {
		n.done = true
		l.armDepthFirst(cb)
		return
	}
	for i, child := range n.nodes {
		i := i
		child.onReady(l, func() { n.settle(i, cb) })
	}
}

func (n *arrayJoinNode) settle(i int, cb func()) {
	if n.done {
		return
	}
	val, err := n.nodes[i].get()
	if err != nil {
		n.err = err
		n.done = true
		for j, c := range n.nodes {
			if j != i {
				c.cancel()
			}
		}
		cb()
		return
	}
	n.results[i] = val
	n.remaining--
	if n.remaining == 0 {
		n.done = true
		cb()
	}
}

func (n *arrayJoinNode) get() (any, error) {
	if n.err != nil {
		return nil, n.err
	}
	return n.results, nil
}

func (n *arrayJoinNode) cancel() {
	if n.cancelled {
		return
	}
	n.cancelled = true
	if !n.done {
		for _, c := range n.nodes {
			c.cancel()
		}
	}
}

// wrapperNode wraps a node with a scoped resource released on drop (e.g. a
// reactor timer reservation).
type wrapperNode struct {
	inner   promiseNode
	dropper func()
	dropped bool
}

func (n *wrapperNode) onReady(l *Loop, cb func()) { n.inner.onReady(l, cb) }
func (n *wrapperNode) get() (any, error)          { return n.inner.get() }

func (n *wrapperNode) cancel() {
	if n.dropped {
		return
	}
	n.dropped = true
	n.dropper()
	n.inner.cancel()
}
