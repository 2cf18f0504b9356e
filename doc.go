// Package turnloop provides a single-threaded cooperative concurrency runtime
// built around promises: values representing a computation that will
// eventually resolve to a success value or to an error.
//
// # Architecture
//
// A [Loop] owns a handle table of armed continuations and is driven one
// event at a time by [Loop.Turn]. Promises compose into a tree of nodes
// (immediate, transform, chain, exclusive join, array join, and a
// fulfillable hub) that arm continuations on the owning loop depth-first
// (for synchronous chaining) or breadth-first (for externally originated
// readiness, e.g. I/O and timers).
//
// A [Reactor] wraps the OS-level readiness primitive (epoll on Linux,
// kqueue on Darwin) and bridges file-descriptor readiness into promise
// fulfillment through [Fulfiller] values, so nonblocking TCP streams,
// listeners, and timers can be expressed as promise-returning operations.
//
// # Thread model
//
// Each [Loop] is confined to a single goroutine pinned to an OS thread via
// runtime.LockOSThread; it is installed as that goroutine's current loop on
// entry to [Run] and may not be observed from any other goroutine. Cross-
// thread communication happens only through a worker's socketpair (see
// [Spawn]) or the loop's own wake channel. There is no work-stealing, no
// promise thread-safety, and no preemption: tasks run to their next
// suspension point voluntarily.
//
// # Usage
//
//	err := turnloop.Run(func(ws turnloop.WaitScope) (turnloop.Promise[struct{}], error) {
//	    p := turnloop.Fulfilled[int](7)
//	    v, err := turnloop.Wait(ws, p)
//	    if err != nil {
//	        return turnloop.Promise[struct{}]{}, err
//	    }
//	    fmt.Println(v)
//	    return turnloop.Fulfilled(struct{}{}), nil
//	})
package turnloop
