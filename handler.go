// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"net/http"
	"sync"
)

// Handler turns raw transfer progress into a final value of type T.
//
// The I/O layer pushes progress into the handler while the caller pulls
// the finished value out of the [*Future]. Methods are invoked by
// whichever goroutine observes the corresponding event, so they must be
// safe to call from an arbitrary goroutine. They must not re-enter the
// future that owns them.
//
// OnResponse and OnBodyPart may return an error to abort the transfer.
// OnCompleted produces the final value; it is invoked at most once per
// materialization and its result is cached by the future. OnFailure
// observes every failure, including a failure raised by OnCompleted
// itself; it is not invoked for cancellation.
type Handler[T any] interface {
	// OnResponse is called once the status line and headers are received.
	OnResponse(resp *http.Response) error

	// OnBodyPart is called for each received body fragment. The part is
	// only valid until this method returns.
	OnBodyPart(part *BodyPart) error

	// OnCompleted produces the final value.
	OnCompleted() (T, error)

	// OnFailure observes a terminal failure.
	OnFailure(err error)
}

// FuncHandler wraps functions as a [Handler] implementation.
//
// Use this to create ad-hoc handlers from closures. A nil field is a
// no-op: progress is accepted, completion returns the zero value, and
// failures are discarded. The zero value is a usable do-nothing handler.
type FuncHandler[T any] struct {
	// OnResponseFunc implements OnResponse when non-nil.
	OnResponseFunc func(resp *http.Response) error

	// OnBodyPartFunc implements OnBodyPart when non-nil.
	OnBodyPartFunc func(part *BodyPart) error

	// OnCompletedFunc implements OnCompleted when non-nil.
	OnCompletedFunc func() (T, error)

	// OnFailureFunc implements OnFailure when non-nil.
	OnFailureFunc func(err error)
}

var _ Handler[string] = &FuncHandler[string]{}

// OnResponse implements [Handler].
func (h *FuncHandler[T]) OnResponse(resp *http.Response) error {
	if h.OnResponseFunc != nil {
		return h.OnResponseFunc(resp)
	}
	return nil
}

// OnBodyPart implements [Handler].
func (h *FuncHandler[T]) OnBodyPart(part *BodyPart) error {
	if h.OnBodyPartFunc != nil {
		return h.OnBodyPartFunc(part)
	}
	return nil
}

// OnCompleted implements [Handler].
func (h *FuncHandler[T]) OnCompleted() (T, error) {
	if h.OnCompletedFunc != nil {
		return h.OnCompletedFunc()
	}
	var zero T
	return zero, nil
}

// OnFailure implements [Handler].
func (h *FuncHandler[T]) OnFailure(err error) {
	if h.OnFailureFunc != nil {
		h.OnFailureFunc(err)
	}
}

// BytesHandler is a stock [Handler] that accumulates the response body.
//
// OnCompleted returns the concatenation of all received fragments. The
// last observed response and failure are retained for inspection via
// [*BytesHandler.Response] and [*BytesHandler.Failure].
//
// The zero value is ready to use.
type BytesHandler struct {
	// mu guards the fields below across goroutines.
	mu sync.Mutex

	// body accumulates fragment snapshots.
	body []byte

	// resp is the last response observed by OnResponse.
	resp *http.Response

	// failure is the last error observed by OnFailure.
	failure error
}

var _ Handler[[]byte] = &BytesHandler{}

// OnResponse implements [Handler].
func (h *BytesHandler) OnResponse(resp *http.Response) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resp = resp
	return nil
}

// OnBodyPart implements [Handler].
func (h *BytesHandler) OnBodyPart(part *BodyPart) error {
	data, err := part.Bytes()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.body = append(h.body, data...)
	return nil
}

// OnCompleted implements [Handler].
func (h *BytesHandler) OnCompleted() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body, nil
}

// OnFailure implements [Handler].
func (h *BytesHandler) OnFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = err
}

// Response returns the response observed by OnResponse, possibly nil.
func (h *BytesHandler) Response() *http.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resp
}

// Failure returns the last failure observed by OnFailure, possibly nil.
func (h *BytesHandler) Failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failure
}
