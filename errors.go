package turnloop

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is against these, or errors.As against the
// concrete *PrematureEOFError / *BrokenPromiseError / *TimeoutError /
// *IOError / *AddressResolutionError types for the wrapped cause.
var (
	// ErrPrematureEOF is returned by Read when the stream closed before
	// min_bytes were read.
	ErrPrematureEOF = errors.New("turnloop: premature EOF")

	// ErrOperationTimedOut is returned by TimeoutAfterMs when the delay
	// elapses before the wrapped promise resolves.
	ErrOperationTimedOut = errors.New("turnloop: operation timed out")

	// ErrBrokenPromise is returned when a Fulfiller is dropped without
	// being resolved.
	ErrBrokenPromise = errors.New("turnloop: broken promise")

	// ErrAddressResolution is returned when a hostport yields no usable
	// socket address.
	ErrAddressResolution = errors.New("turnloop: address resolution failure")
)

// PrematureEOFError reports how many bytes were actually read before the
// peer closed the stream.
type PrematureEOFError struct {
	Got, Want int
}

func (e *PrematureEOFError) Error() string {
	return fmt.Sprintf("turnloop: premature EOF: got %d of %d bytes", e.Got, e.Want)
}

func (e *PrematureEOFError) Unwrap() error { return ErrPrematureEOF }

// BrokenPromiseError wraps the reason, if any, that a hub's paired
// fulfiller was dropped without resolving.
type BrokenPromiseError struct {
	Cause error
}

func (e *BrokenPromiseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("turnloop: broken promise: %v", e.Cause)
	}
	return "turnloop: broken promise: fulfiller dropped"
}

func (e *BrokenPromiseError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrBrokenPromise
}

// TimeoutError reports the delay that elapsed before the race was decided.
type TimeoutError struct {
	AfterMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("turnloop: operation timed out after %dms", e.AfterMs)
}

func (e *TimeoutError) Unwrap() error { return ErrOperationTimedOut }

// IOError wraps an error surfaced by the underlying OS primitive (syscall,
// poller registration, etc).
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("turnloop: io failure during %s: %v", e.Op, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

// AddressResolutionError reports the hostport that failed to resolve.
type AddressResolutionError struct {
	HostPort string
	Cause    error
}

func (e *AddressResolutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("turnloop: could not resolve %q: %v", e.HostPort, e.Cause)
	}
	return fmt.Sprintf("turnloop: could not resolve %q", e.HostPort)
}

func (e *AddressResolutionError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrAddressResolution
}

// Is matches ErrAddressResolution whether or not a Cause is set.
func (e *AddressResolutionError) Is(target error) bool { return target == ErrAddressResolution }

// fatal conditions (programmer errors) panic rather than return an error,
// matching spec §7: nested wait, reusing a consumed fulfiller, double-
// installing a loop on one goroutine, and over-fulfilling an observer slot
// must all assert and terminate.
func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("turnloop: fatal: "+format, args...))
}
