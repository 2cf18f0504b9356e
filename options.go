package turnloop

// loopOptions holds the resolved configuration for a Loop, grounded on the
// teacher's functional-options pattern (options.go: LoopOption).
type loopOptions struct {
	metricsEnabled bool
	logger         *pkgLogger
}

// LoopOption configures a Loop at construction time.
type LoopOption interface {
	applyLoop(*loopOptions)
}

type loopOptionFunc func(*loopOptions)

func (f loopOptionFunc) applyLoop(o *loopOptions) { f(o) }

// WithMetrics enables turn-latency quantile tracking, retrievable via
// Loop.Stats.
func WithMetrics(enabled bool) LoopOption {
	return loopOptionFunc(func(o *loopOptions) { o.metricsEnabled = enabled })
}

// WithLogger overrides the package-default (no-op) structured logger for
// this loop only.
func WithLogger(logger *pkgLogger) LoopOption {
	return loopOptionFunc(func(o *loopOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

func resolveLoopOptions(opts []LoopOption) *loopOptions {
	cfg := &loopOptions{logger: defaultLogger()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyLoop(cfg)
	}
	return cfg
}
