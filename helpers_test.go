// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network].
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// funcRoundTripper adapts a function to [http.RoundTripper] for testing.
type funcRoundTripper func(req *http.Request) (*http.Response, error)

// RoundTrip implements [http.RoundTripper].
func (f funcRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// recordingHandler is a [Handler] that records every callback invocation
// so tests can assert on the exact interaction with the future.
type recordingHandler struct {
	// mu guards all the fields below.
	mu sync.Mutex

	// responses collects the OnResponse arguments.
	responses []*http.Response

	// parts collects the snapshot of each OnBodyPart argument.
	parts [][]byte

	// failures collects the OnFailure arguments.
	failures []error

	// completedCalls counts the OnCompleted invocations.
	completedCalls int

	// value is what OnCompleted returns.
	value string

	// completeErr, when non-nil, makes OnCompleted fail.
	completeErr error
}

var _ Handler[string] = &recordingHandler{}

func (h *recordingHandler) OnResponse(resp *http.Response) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, resp)
	return nil
}

func (h *recordingHandler) OnBodyPart(part *BodyPart) error {
	data, err := part.Bytes()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parts = append(h.parts, data)
	return nil
}

func (h *recordingHandler) OnCompleted() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completedCalls++
	if h.completeErr != nil {
		return "", h.completeErr
	}
	return h.value, nil
}

func (h *recordingHandler) OnFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, err)
}

func (h *recordingHandler) Completed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completedCalls
}

func (h *recordingHandler) Failures() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error{}, h.failures...)
}

func (h *recordingHandler) Body() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	var body []byte
	for _, part := range h.parts {
		body = append(body, part...)
	}
	return body
}

func (h *recordingHandler) Responses() []*http.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*http.Response{}, h.responses...)
}

// newTestFuture returns a future suitable for unit tests, using the
// given handler and timeout, with logging disabled.
func newTestFuture(handler Handler[string], timeout time.Duration) *Future[string] {
	target := &url.URL{Scheme: "https", Host: "example.com", Path: "/"}
	return NewFuture(NewConfig(), target, nil, handler, nil, timeout, DefaultSLogger())
}
