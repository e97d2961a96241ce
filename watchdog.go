// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

// Watchdog is a cancellable token representing a scheduled timeout or
// idle check owned by an external timer component.
//
// A [*Future] cancels its watchdog once, opportunistically, at the first
// terminal transition, so that a stale check cannot fire after the
// result is already known. Cancellation is resource cleanup, not a
// correctness requirement.
type Watchdog interface {
	// Cancel stops the pending check, reporting whether this call was
	// the one that stopped it. It is safe to call multiple times and
	// after the check has fired.
	Cancel() bool
}

// WatchdogFunc adapts a function to the [Watchdog] interface.
type WatchdogFunc func() bool

var _ Watchdog = WatchdogFunc(nil)

// Cancel implements [Watchdog].
func (f WatchdogFunc) Cancel() bool {
	return f()
}
