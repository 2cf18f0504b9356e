package turnloop

// Promise[T] is the public, generically typed handle onto a promiseNode.
// Keeping the node type-erased (it operates on any) while the public API
// stays generic is what lets transformNode flatten a callback's returned
// Promise[U] without ever knowing U — Promise[T] implements thenable for
// every T, and Go lets a generic type's method satisfy a non-generic
// interface for each of its instantiations.
type Promise[T any] struct {
	node promiseNode
}

func (p Promise[T]) promiseNode() promiseNode { return p.node }

// Fulfilled returns an already-resolved promise.
func Fulfilled[T any](v T) Promise[T] {
	return Promise[T]{node: &immediateNode{val: v}}
}

// Rejected returns an already-failed promise.
func Rejected[T any](err error) Promise[T] {
	return Promise[T]{node: &immediateNode{err: err}}
}

// Then attaches a same-type success continuation. onRejected, if non-nil,
// handles the error case and may itself return an error to propagate a
// different failure, or recover by returning a value.
func (p Promise[T]) Then(onFulfilled func(T) (T, error), onRejected func(error) (T, error)) Promise[T] {
	return Promise[T]{node: wrapTransform(p.node, onFulfilled, onRejected)}
}

// Catch attaches only an error handler, passing success values through
// unchanged.
func (p Promise[T]) Catch(onRejected func(error) (T, error)) Promise[T] {
	return Promise[T]{node: wrapTransform[T](p.node, nil, onRejected)}
}

func wrapTransform[T any](inner promiseNode, onFulfilled func(T) (T, error), onRejected func(error) (T, error)) promiseNode {
	n := &transformNode{inner: inner}
	if onFulfilled != nil {
		n.onSuccess = func(v any) (any, error) { return onFulfilled(v.(T)) }
	}
	if onRejected != nil {
		n.onError = func(err error) (any, error) { return onRejected(err) }
	}
	return n
}

// ThenMap is a type-changing success continuation. It must be a free
// function rather than a method: Go forbids a generic method from
// introducing a type parameter beyond its receiver's, so Promise[T] cannot
// itself export a method producing Promise[U].
func ThenMap[T, U any](p Promise[T], onFulfilled func(T) (U, error)) Promise[U] {
	n := &transformNode{
		inner: p.node,
		onSuccess: func(v any) (any, error) {
			u, err := onFulfilled(v.(T))
			return u, err
		},
	}
	return Promise[U]{node: n}
}

// ThenChain is the type-changing analogue of Then whose continuation itself
// returns a further promise; transformNode's thenable detection flattens it
// automatically once the callback's Promise[U] comes back boxed as any.
func ThenChain[T, U any](p Promise[T], onFulfilled func(T) (Promise[U], error)) Promise[U] {
	n := &transformNode{
		inner: p.node,
		onSuccess: func(v any) (any, error) {
			next, err := onFulfilled(v.(T))
			if err != nil {
				return nil, err
			}
			return next, nil
		},
	}
	return Promise[U]{node: n}
}

// ExclusiveJoin resolves with whichever of a, b settles first, dropping the
// loser.
func ExclusiveJoin[T any](a, b Promise[T]) Promise[T] {
	return Promise[T]{node: &exclusiveJoinNode{a: a.node, b: b.node}}
}

// JoinAll resolves to the ordered results of every input promise, or the
// first error encountered, cancelling the rest.
func JoinAll[T any](ps []Promise[T]) Promise[[]T] {
	nodes := make([]promiseNode, len(ps))
	for i, p := range ps {
		nodes[i] = p.node
	}
	n := &arrayJoinNode{nodes: nodes}
	return Promise[[]T]{node: &arrayJoinAdapter[T]{inner: n}}
}

// arrayJoinAdapter converts arrayJoinNode's []any result into []T.
type arrayJoinAdapter[T any] struct {
	inner *arrayJoinNode
}

func (a *arrayJoinAdapter[T]) onReady(l *Loop, cb func()) { a.inner.onReady(l, cb) }
func (a *arrayJoinAdapter[T]) cancel()                    { a.inner.cancel() }
func (a *arrayJoinAdapter[T]) get() (any, error) {
	v, err := a.inner.get()
	if err != nil {
		return nil, err
	}
	raw := v.([]any)
	out := make([]T, len(raw))
	for i, x := range raw {
		out[i] = x.(T)
	}
	return out, nil
}
