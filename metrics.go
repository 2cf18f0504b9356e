package turnloop

import "time"

// metrics tracks per-turn latency as a streaming P50/P99 pair, grounded on
// the teacher's metrics.go (there: request-latency percentiles exported via
// an expvar-style snapshot; here: Loop.Turn latency, exposed via Loop.Stats).
// A nil *metrics is valid and every method is a no-op, so disabled loops
// (the default; see WithMetrics) pay nothing beyond a pointer check.
type metrics struct {
	turns int64
	p50   *psquare
	p99   *psquare
}

func newMetrics() *metrics {
	return &metrics{
		p50: newPSquare(0.5),
		p99: newPSquare(0.99),
	}
}

// start returns the current time if m is non-nil, else the zero Time; record
// checks the same nil-ness, so callers (loop.go's Turn) never need to branch
// on whether metrics are enabled.
func (m *metrics) start() time.Time {
	if m == nil {
		return time.Time{}
	}
	return time.Now()
}

func (m *metrics) record(start time.Time) {
	if m == nil {
		return
	}
	d := time.Since(start).Seconds()
	m.turns++
	m.p50.observe(d)
	m.p99.observe(d)
}

// Stats is a point-in-time snapshot of a Loop's turn-latency metrics.
type Stats struct {
	Turns      int64
	P50Seconds float64
	P99Seconds float64
	Enabled    bool
}

// Stats reports turn-latency metrics accumulated since the loop was
// constructed. Returns a zero, Enabled=false Stats if WithMetrics(true) was
// not passed to NewLoop.
func (l *Loop) Stats() Stats {
	if l.metrics == nil {
		return Stats{}
	}
	return Stats{
		Turns:      l.metrics.turns,
		P50Seconds: l.metrics.p50.value(),
		P99Seconds: l.metrics.p99.value(),
		Enabled:    true,
	}
}
