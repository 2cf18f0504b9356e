package turnloop

import "time"

// AfterDelayMs returns a promise that resolves, with no value, once afterMs
// milliseconds have elapsed according to the loop's reactor-driven timer
// heap. Named to match spec's Timer surface (after_delay_ms).
func AfterDelayMs(l *Loop, afterMs int64) Promise[struct{}] {
	p, f := NewPromiseAndFulfiller[struct{}](l)
	d := time.Duration(afterMs) * time.Millisecond
	entry := l.reactor.afterDelay(d, func() { f.Fulfill(struct{}{}) })
	return Promise[struct{}]{node: &wrapperNode{
		inner:   p.node,
		dropper: func() { l.reactor.cancelTimer(entry) },
	}}
}

// TimeoutAfterMs races p against a delay timer; if the timer wins, p is
// cancelled and the returned promise rejects with *TimeoutError.
func TimeoutAfterMs[T any](l *Loop, p Promise[T], afterMs int64) Promise[T] {
	timeout := ThenMap(AfterDelayMs(l, afterMs), func(struct{}) (T, error) {
		var zero T
		return zero, &TimeoutError{AfterMs: afterMs}
	})
	return ExclusiveJoin(p, timeout)
}
