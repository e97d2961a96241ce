// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/bassosimone/runtimex"
)

// Future state machine: pending accepts exactly one transition to a
// terminal state, decided by a single compare-and-swap. No transition
// leaves a terminal state.
const (
	futurePending int32 = iota
	futureDone
	futureAborted
	futureCancelled
)

// Future tracks when an asynchronous HTTP transfer has been fully
// processed and hands the final value of type T to the caller.
//
// One future exists per in-flight request. The I/O goroutine drives it
// to completion with [*Future.Done] or [*Future.Abort]; the caller
// blocks in [*Future.Wait] or [*Future.WaitTimeout]; a timer goroutine
// may abort it on expiry; protocol-policy collaborators read and write
// the auxiliary flags. All of this is safe without external locking:
// every shared field is an independent atomic cell, so the hot path
// ([*Future.Touch] on each fragment) never contends with the rare
// terminal transition.
//
// Concurrent Done, Abort, and Cancel calls race; the first writer of a
// terminal state wins and the losers are no-ops. In particular a
// failure recorded before Done drops the success, and a failure
// reported after Done is dropped. The ready signal is released exactly
// once, even when the handler fails while producing the value.
//
// Construct using [NewFuture]. The exported fields are safe to modify
// after construction but before sharing the future with another
// goroutine.
type Future[T any] struct {
	// state is the completion state, written once via CAS.
	state atomic.Int32

	// gate is the ready signal released at the first terminal transition.
	gate *Gate

	// content caches the materialized value; first writer wins.
	content atomic.Pointer[T]

	// cause records the terminal failure; consumed by the first waiter.
	cause atomic.Pointer[error]

	// handler materializes the value and observes failures.
	handler Handler[T]

	// req is the immutable request descriptor.
	req *Request

	// httpReq is the low-level request, replaceable on redirect.
	httpReq atomic.Pointer[http.Request]

	// uri is the target URI, replaceable on redirect.
	uri atomic.Pointer[url.URL]

	// timeout is the wait budget and idle-liveness budget.
	timeout time.Duration

	// lastTouch is the liveness timestamp in nanoseconds.
	lastTouch atomic.Int64

	// watchdog holds the armed timeout check, cancelled once at terminal.
	watchdog atomic.Pointer[watchdogBox]

	// keepAlive records whether the connection may be reused.
	keepAlive atomic.Bool

	// httpResp is the raw response snapshot set by the I/O layer.
	httpResp atomic.Pointer[http.Response]

	// redirects counts redirects followed by policy collaborators.
	redirects atomic.Int32

	// inAuth records whether an auth exchange is in progress.
	inAuth atomic.Bool

	// statusReceived records whether the status line was received.
	statusReceived atomic.Bool

	// spanID identifies this transfer in structured logs.
	spanID string

	// t0 is the construction time, included in terminal log events.
	t0 time.Time

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewFuture] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewFuture] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewFuture] from [Config.TimeNow].
	TimeNow func() time.Time
}

// watchdogBox boxes a [Watchdog] so it fits in an [atomic.Pointer].
type watchdogBox struct {
	wd Watchdog
}

// NewFuture returns a new pending [*Future].
//
// The cfg argument contains the common configuration for respfut types.
//
// The uri argument is the target URI and may be nil when unknown.
//
// The req argument is the immutable request descriptor and may be nil.
//
// The handler argument materializes the final value; it must be non-nil.
//
// The httpReq argument is the low-level request and may be nil.
//
// The timeout argument is the wait and idle-liveness budget; it must
// be positive.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewFuture[T any](cfg *Config, uri *url.URL, req *Request, handler Handler[T],
	httpReq *http.Request, timeout time.Duration, logger SLogger) *Future[T] {
	runtimex.Assert(handler != nil)
	runtimex.Assert(timeout > 0)
	fut := &Future[T]{
		state:          atomic.Int32{},
		gate:           NewGate(),
		content:        atomic.Pointer[T]{},
		cause:          atomic.Pointer[error]{},
		handler:        handler,
		req:            req,
		httpReq:        atomic.Pointer[http.Request]{},
		uri:            atomic.Pointer[url.URL]{},
		timeout:        timeout,
		lastTouch:      atomic.Int64{},
		watchdog:       atomic.Pointer[watchdogBox]{},
		keepAlive:      atomic.Bool{},
		httpResp:       atomic.Pointer[http.Response]{},
		redirects:      atomic.Int32{},
		inAuth:         atomic.Bool{},
		statusReceived: atomic.Bool{},
		spanID:         NewSpanID(),
		t0:             cfg.TimeNow(),
		ErrClassifier:  cfg.ErrClassifier,
		Logger:         logger,
		TimeNow:        cfg.TimeNow,
	}
	fut.uri.Store(uri)
	fut.httpReq.Store(httpReq)
	fut.keepAlive.Store(true)
	fut.lastTouch.Store(fut.t0.UnixNano())
	return fut
}

// IsDone reports whether the future reached the done or aborted state.
//
// An explicitly cancelled future reports false here and true from
// [*Future.IsCancelled].
func (f *Future[T]) IsDone() bool {
	state := f.state.Load()
	return state == futureDone || state == futureAborted
}

// IsCancelled reports whether cancellation has been recorded, either
// explicitly via [*Future.Cancel] or internally by an expired wait.
func (f *Future[T]) IsCancelled() bool {
	return f.state.Load() == futureCancelled
}

// HasExpired reports whether the time elapsed since the last
// [*Future.Touch] exceeds the timeout budget.
//
// This is a pure liveness probe with no side effects. An external idle
// sweeper (see [Reaper]) uses it to decide whether to abort a transfer
// whose future has gone silent.
func (f *Future[T]) HasExpired() bool {
	return f.TimeNow().Sub(time.Unix(0, f.lastTouch.Load())) > f.timeout
}

// Touch resets the liveness timestamp to now.
//
// Collaborators call this whenever forward progress is observed so that
// idle-based expiry does not fire during legitimate long transfers.
func (f *Future[T]) Touch() {
	f.lastTouch.Store(f.TimeNow().UnixNano())
}

// Cancel records cancellation, releases the ready signal, and reports
// whether this call performed the transition.
//
// Cancellation is cooperative bookkeeping: it does not stop in-flight
// I/O and it does not notify the handler's failure path. A call racing
// with [*Future.Done] or [*Future.Abort] loses cleanly: whichever
// writer lands first owns the terminal state and the gate is still
// released exactly once.
func (f *Future[T]) Cancel() bool {
	// 1. only the first terminal writer proceeds
	if !f.state.CompareAndSwap(futurePending, futureCancelled) {
		return false
	}

	// 2. stop a pending timeout check
	f.cancelWatchdog()

	// 3. wake every waiter
	f.logTerminal("futureCancelled", nil)
	f.gate.Release()
	return true
}

// Done records terminal success.
//
// The I/O layer calls this once a full response has been assembled. If
// a failure or cancellation already won the race, Done is a no-op
// returning nil: a request cannot be both succeeded and aborted.
// Otherwise Done cancels the watchdog, asks the handler to produce the
// final value, caches it, and releases the ready signal. When the
// handler's value production fails, the failure is forwarded to the
// handler's failure path and returned to the caller of Done; the ready
// signal is released regardless, so no waiter is left hanging.
func (f *Future[T]) Done() error {
	// 1. an already-recorded failure or cancellation wins over success
	if !f.state.CompareAndSwap(futurePending, futureDone) {
		return nil
	}

	// 2. prevent a late timeout from firing after success
	f.cancelWatchdog()

	// 3. release the ready signal even if value production fails
	defer f.gate.Release()

	// 4. materialize and cache the value
	_, err := f.Content()
	f.logTerminal("futureDone", err)
	return err
}

// Abort records terminal failure with the given cause.
//
// The I/O layer, a watchdog, or a policy collaborator calls this on an
// unrecoverable error. If the future is already done or cancelled the
// report is dropped: the first terminal writer wins and only the first
// recorded cause is kept. Otherwise Abort cancels the watchdog, records
// the cause, notifies the handler's failure path, and releases the
// ready signal even if the handler's callback panics.
func (f *Future[T]) Abort(cause error) {
	// 1. first terminal writer wins
	if !f.state.CompareAndSwap(futurePending, futureAborted) {
		return
	}

	// 2. best-effort watchdog cleanup
	f.cancelWatchdog()

	// 3. release the ready signal no matter what the handler does
	defer f.gate.Release()

	// 4. record the cause before waking waiters, then notify the handler
	f.cause.Store(&cause)
	f.logTerminal("futureAborted", cause)
	f.handler.OnFailure(cause)
}

// Wait blocks until the future is terminal, using the future's own
// timeout budget, and returns the final value.
//
// On expiry it behaves exactly like [*Future.WaitTimeout], returning
// [ErrTimeout], so callers can match the timeout kind with [errors.Is]
// regardless of which wait entry point they used.
func (f *Future[T]) Wait() (T, error) {
	return f.WaitTimeout(f.timeout)
}

// WaitTimeout blocks until the future is terminal or the given timeout
// elapses, and returns the final value.
//
// When the wait expires before any terminal transition, the future
// declares cancellation itself, notifies the handler's failure path
// exactly once, and returns [ErrTimeout]. When woken by a terminal
// transition, a recorded failure cause is consumed and returned; the
// consumption is a single read, so a second wait after a consumed
// failure falls through to value extraction. Otherwise the value is
// extracted as in [*Future.Content].
func (f *Future[T]) WaitTimeout(timeout time.Duration) (T, error) {
	// 1. block unless the ready signal is already released; the gate is
	// released after the cause or value is recorded, so a waiter that
	// skips the wait observes a fully recorded outcome
	if !f.gate.Released() {
		if !f.gate.Wait(timeout) {
			// 2. expiry: the one path where the future cancels itself; a
			// terminal writer racing past the expired wait wins the CAS
			// and we consume its outcome instead
			if f.state.CompareAndSwap(futurePending, futureCancelled) {
				f.cancelWatchdog()
				defer f.gate.Release()
				f.logTerminal("futureCancelled", ErrTimeout)
				f.handler.OnFailure(ErrTimeout)
				var zero T
				return zero, ErrTimeout
			}

			// 3. the winner records its cause or value before its
			// deferred gate release, so block until the release rather
			// than reading a half-recorded outcome
			<-f.gate.Done()
		}
	}

	// 4. consume the recorded failure, if any (single read)
	if causep := f.cause.Swap(nil); causep != nil {
		var zero T
		return zero, *causep
	}

	// 5. extract the value
	return f.Content()
}

// Content extracts the final value.
//
// A cached value is returned as is. Otherwise the handler's
// value-production step runs and its result is cached with
// first-writer-wins semantics: concurrent callers may both compute but
// all of them observe the same winner. When value production fails, the
// failure is forwarded to the handler's failure path and returned
// wrapped in a [*HandlerError].
func (f *Future[T]) Content() (T, error) {
	// 1. serve the cached value when present
	if valuep := f.content.Load(); valuep != nil {
		return *valuep, nil
	}

	// 2. ask the handler to produce the value
	value, err := f.handler.OnCompleted()
	if err != nil {
		f.handler.OnFailure(err)
		var zero T
		return zero, &HandlerError{Err: err}
	}

	// 3. cache with first-writer-wins and return the winner
	f.content.CompareAndSwap(nil, &value)
	return *f.content.Load(), nil
}

// cancelWatchdog cancels the armed watchdog, if any, exactly once.
func (f *Future[T]) cancelWatchdog() {
	if box := f.watchdog.Swap(nil); box != nil && box.wd != nil {
		box.wd.Cancel()
	}
}

// logTerminal emits a terminal-transition log event.
func (f *Future[T]) logTerminal(event string, err error) {
	f.Logger.Info(
		event,
		slog.Any("err", err),
		slog.String("errClass", f.ErrClassifier.Classify(err)),
		slog.String("spanID", f.spanID),
		slog.Time("t0", f.t0),
		slog.Time("t", f.TimeNow()),
	)
}

// Request returns the immutable request descriptor, possibly nil.
func (f *Future[T]) Request() *Request {
	return f.req
}

// Handler returns the completion handler fixed at construction.
//
// The handler is shared with the caller for inspection; it is not
// owned exclusively by the future.
func (f *Future[T]) Handler() Handler[T] {
	return f.handler
}

// SpanID returns the span ID identifying this transfer in logs.
func (f *Future[T]) SpanID() string {
	return f.spanID
}

// Timeout returns the wait and idle-liveness budget.
func (f *Future[T]) Timeout() time.Duration {
	return f.timeout
}

// HTTPRequest returns the low-level request, possibly nil.
func (f *Future[T]) HTTPRequest() *http.Request {
	return f.httpReq.Load()
}

// SetHTTPRequest replaces the low-level request (e.g., on redirect).
//
// Exactly one collaborator at a time may replace it, under that
// collaborator's own synchronization discipline.
func (f *Future[T]) SetHTTPRequest(req *http.Request) {
	f.httpReq.Store(req)
}

// URI returns the target URI, possibly nil.
func (f *Future[T]) URI() *url.URL {
	return f.uri.Load()
}

// SetURI replaces the target URI (e.g., on redirect).
func (f *Future[T]) SetURI(uri *url.URL) {
	f.uri.Store(uri)
}

// KeepAlive reports whether the connection may be reused.
//
// Futures start with keep-alive set to true.
func (f *Future[T]) KeepAlive() bool {
	return f.keepAlive.Load()
}

// SetKeepAlive records whether the connection may be reused.
func (f *Future[T]) SetKeepAlive(keepAlive bool) {
	f.keepAlive.Store(keepAlive)
}

// HTTPResponse returns the raw response snapshot, possibly nil.
func (f *Future[T]) HTTPResponse() *http.Response {
	return f.httpResp.Load()
}

// SetHTTPResponse records the raw response snapshot.
func (f *Future[T]) SetHTTPResponse(resp *http.Response) {
	f.httpResp.Store(resp)
}

// RedirectCount returns the number of redirects recorded so far.
func (f *Future[T]) RedirectCount() int {
	return int(f.redirects.Load())
}

// IncrementRedirectCount increments the redirect counter and returns
// the new count.
func (f *Future[T]) IncrementRedirectCount() int {
	return int(f.redirects.Add(1))
}

// InAuth reports whether an authentication exchange is in progress.
func (f *Future[T]) InAuth() bool {
	return f.inAuth.Load()
}

// SwapInAuth records whether an authentication exchange is in progress
// and returns the previous value.
func (f *Future[T]) SwapInAuth(inAuth bool) bool {
	return f.inAuth.Swap(inAuth)
}

// SwapStatusReceived records whether the status line was received and
// returns the previous value.
func (f *Future[T]) SwapStatusReceived(received bool) bool {
	return f.statusReceived.Swap(received)
}

// SetWatchdog arms the given watchdog for this future.
//
// The future cancels the armed watchdog exactly once at its first
// terminal transition. Arm a new watchdog for each scheduling cycle.
func (f *Future[T]) SetWatchdog(wd Watchdog) {
	f.watchdog.Store(&watchdogBox{wd: wd})
}
