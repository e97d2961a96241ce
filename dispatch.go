// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// NewDispatcher returns a new [*Dispatcher] using the given round tripper.
//
// The cfg argument contains the common configuration for respfut types.
//
// The txp argument performs the HTTP round trip; use [*ConnTransport]
// to bind the dispatcher to a single established connection.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewDispatcher(cfg *Config, txp http.RoundTripper, logger SLogger) *Dispatcher {
	return &Dispatcher{
		ChunkSize:       cfg.ChunkSize,
		Config:          cfg,
		ErrClassifier:   cfg.ErrClassifier,
		Logger:          logger,
		ResponseTimeout: cfg.ResponseTimeout,
		RoundTripper:    txp,
		TimeNow:         cfg.TimeNow,
	}
}

// Dispatcher executes one HTTP round trip per future and drives the
// future to a terminal state.
//
// The dispatcher is the push side of the bridge: it delivers the
// response and each body fragment to the future's [Handler] from the
// transfer goroutine, touches the future on every fragment so that
// idle-based expiry does not fire during legitimate transfers, and
// finally calls [*Future.Done] or [*Future.Abort]. The caller holds
// the future returned by [Send] and blocks on it.
//
// The dispatcher performs exactly one round trip and follows no
// redirects; redirect and auth policy belongs to higher-level packages
// that record their decisions on the future.
//
// All fields are safe to modify after construction but before the
// first call to [Send].
type Dispatcher struct {
	// ChunkSize is the body fragment size.
	//
	// Set by [NewDispatcher] from [Config.ChunkSize].
	ChunkSize int

	// Config is the common configuration, used to construct futures.
	//
	// Set by [NewDispatcher] to the cfg argument.
	Config *Config

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewDispatcher] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewDispatcher] to the user-provided logger.
	Logger SLogger

	// ResponseTimeout is the budget assigned to each future.
	//
	// Set by [NewDispatcher] from [Config.ResponseTimeout].
	ResponseTimeout time.Duration

	// RoundTripper performs the HTTP round trip.
	//
	// Set by [NewDispatcher] to the user-provided round tripper.
	RoundTripper http.RoundTripper

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewDispatcher] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Send dispatches the given request and returns the pending [*Future]
// immediately; the transfer proceeds on its own goroutine.
//
// Send builds the low-level request bound to ctx, so cancelling ctx
// interrupts the round trip through the transport. The handler receives
// the response, each body fragment, and the completion or failure, all
// from the transfer goroutine.
func Send[T any](ctx context.Context, d *Dispatcher, req *Request, handler Handler[T]) (*Future[T], error) {
	runtimex.Assert(d.Config != nil)
	httpReq, err := req.NewHTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	fut := NewFuture(d.Config, req.URL, req, handler, httpReq, d.ResponseTimeout, d.Logger)
	go transfer(d, fut)
	return fut, nil
}

// transfer performs the round trip and drives the future to completion.
func transfer[T any](d *Dispatcher, fut *Future[T]) {
	// 1. Get the underlying connection, when exposed, for logging metadata
	type connGetter interface {
		Conn() net.Conn
	}
	var conn net.Conn
	if cg, ok := d.RoundTripper.(connGetter); ok {
		conn = cg.Conn()
	}

	// 2. Log before the transfer
	httpReq := fut.HTTPRequest()
	t0 := d.TimeNow()
	deadline, _ := httpReq.Context().Deadline()
	transferLogStart(d, conn, fut, httpReq, t0, deadline)

	// 3. Perform the round trip
	resp, err := d.RoundTripper.RoundTrip(httpReq)
	if err != nil {
		fut.Abort(err)
		transferLogDone(d, conn, fut, httpReq, t0, deadline, err)
		return
	}

	// 4. Record progress and snapshot the raw response
	fut.Touch()
	fut.SetHTTPResponse(resp)
	fut.SwapStatusReceived(true)
	fut.SetKeepAlive(!resp.Close)

	// 5. Deliver the response to the handler
	if err := fut.Handler().OnResponse(resp); err != nil {
		resp.Body.Close()
		fut.Abort(err)
		transferLogDone(d, conn, fut, httpReq, t0, deadline, err)
		return
	}

	// 6. Stream the body to the handler in fragments
	if err := transferBody(d, conn, fut, resp); err != nil {
		fut.Abort(err)
		transferLogDone(d, conn, fut, httpReq, t0, deadline, err)
		return
	}

	// 7. Record terminal success
	err = fut.Done()
	transferLogDone(d, conn, fut, httpReq, t0, deadline, err)
}

// transferBody reads the response body in fragments and delivers each
// of them to the handler, touching the future on every fragment.
func transferBody[T any](d *Dispatcher, conn net.Conn, fut *Future[T], resp *http.Response) error {
	defer resp.Body.Close()
	buffer := make([]byte, d.ChunkSize)
	for {
		count, err := resp.Body.Read(buffer)
		if count > 0 {
			fut.Touch()
			d.Logger.Debug(
				"transferBodyPart",
				slog.Int("count", count),
				slog.String("localAddr", safeconn.LocalAddr(conn)),
				slog.String("protocol", safeconn.Network(conn)),
				slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
				slog.String("spanID", fut.SpanID()),
				slog.Time("t", d.TimeNow()),
			)
			part := NewBodyPart(bytes.NewReader(buffer[:count]))
			if herr := fut.Handler().OnBodyPart(part); herr != nil {
				return herr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func transferLogStart[T any](d *Dispatcher, conn net.Conn, fut *Future[T],
	req *http.Request, t0 time.Time, deadline time.Time) {
	d.Logger.Info(
		"transferStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.String("spanID", fut.SpanID()),
		slog.Time("t", t0),
	)
}

func transferLogDone[T any](d *Dispatcher, conn net.Conn, fut *Future[T],
	req *http.Request, t0 time.Time, deadline time.Time, err error) {
	var (
		statusCode int
		headers    http.Header
	)
	if resp := fut.HTTPResponse(); resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	d.Logger.Info(
		"transferDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", d.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.String("spanID", fut.SpanID()),
		slog.Time("t0", t0),
		slog.Time("t", d.TimeNow()),
	)
}
