// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is an immutable descriptor of what is being sent.
//
// The body is pre-buffered, so a low-level request built from this
// descriptor can be replayed (e.g., after a redirect or an auth
// challenge). Mutating the fields after sharing the descriptor is the
// caller's misuse: the type relies on convention, not enforcement.
//
// Construct using [NewRequest].
type Request struct {
	// Method is the HTTP method (e.g., "GET").
	Method string

	// URL is the parsed target URL.
	URL *url.URL

	// Header contains the request headers. NewRequest initializes it
	// to an empty, non-nil [http.Header].
	Header http.Header

	// Body is the pre-buffered request body, possibly empty.
	Body []byte
}

// NewRequest returns a new [*Request] for the given method and URL.
//
// The body may be nil for requests without a body.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: method,
		URL:    parsed,
		Header: http.Header{},
		Body:   body,
	}, nil
}

// NewHTTPRequest builds the low-level [*http.Request] for this
// descriptor, bound to the given context.
//
// Each call returns a fresh request with a fresh body reader; GetBody
// is set so that transports can replay the body. Headers are cloned,
// so mutating the returned request does not affect the descriptor.
func (r *Request) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, r.Method, r.URL.String(), bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	if len(r.Header) > 0 {
		httpReq.Header = r.Header.Clone()
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(r.Body)), nil
	}
	return httpReq, nil
}
