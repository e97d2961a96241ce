// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import "errors"

// ErrTimeout indicates that no terminal state was reached within the
// wait budget. [*Future.WaitTimeout] returns this error after marking
// the future as cancelled and notifying the handler's failure path.
var ErrTimeout = errors.New("respfut: no response received within the timeout")

// HandlerError wraps a failure raised by a handler's value-production
// step ([Handler.OnCompleted]). The original failure is also delivered
// to the handler's own failure path, so the handler observes every
// failure even when it is the origin.
type HandlerError struct {
	// Err is the failure returned by the handler.
	Err error
}

var _ error = &HandlerError{}

// Error implements error.
func (e *HandlerError) Error() string {
	return "respfut: handler failed to produce the value: " + e.Err.Error()
}

// Unwrap supports [errors.Is] and [errors.As].
func (e *HandlerError) Unwrap() error {
	return e.Err
}
