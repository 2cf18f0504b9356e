package turnloop

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// pkgLogger is the structured logger type used throughout the package,
// grounded on the teacher's package-level SetStructuredLogger/getGlobalLogger
// pattern but using the pack's real logiface+stumpy stack instead of a
// hand-rolled Logger interface.
type pkgLogger = logiface.Logger[*stumpy.Event]

var (
	globalLogger atomicLogger

	// spuriousLimiter rate-limits the "spurious readiness" and
	// "broken promise" warnings per file descriptor / hub, so a
	// misbehaving peer can't flood the log. This is purely a logging
	// concern (see SPEC_FULL.md AMBIENT Log-rate-limiting); it has no
	// bearing on engine retry/backoff, which spec.md's Non-goals forbid.
	spuriousLimiter = catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 10,
	})
)

type atomicLogger struct {
	l *pkgLogger
}

// SetLogger installs the process-wide default structured logger used by
// loops constructed without WithLogger. Passing nil restores silence.
func SetLogger(l *pkgLogger) {
	if l == nil {
		l = stumpy.L.New()
	}
	globalLogger.l = l
}

func defaultLogger() *pkgLogger {
	if globalLogger.l != nil {
		return globalLogger.l
	}
	return stumpy.L.New() // disabled: no writer/factory configured
}

// logSpurious emits a rate-limited warning that a readiness event arrived
// with no fulfiller waiting on the given category (e.g. an fd number).
func (l *Loop) logSpurious(category any, detail string) {
	if _, ok := spuriousLimiter.Allow(category); !ok {
		return
	}
	l.logger.Warning().Str("detail", detail).Log("turnloop: spurious readiness ignored")
}

// logBrokenPromise emits a rate-limited warning when a fulfiller is
// dropped without resolving its paired hub.
func (l *Loop) logBrokenPromise(category any) {
	if _, ok := spuriousLimiter.Allow(category); !ok {
		return
	}
	l.logger.Warning().Log("turnloop: fulfiller dropped without resolving")
}
