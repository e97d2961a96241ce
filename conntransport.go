//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/httpslog/httpslog.go
//

package respfut

import (
	"crypto/tls"
	"net"
	"net/http"

	"github.com/bassosimone/sud"
	"golang.org/x/net/http2"
)

// ConnTransport is an [http.RoundTripper] over a single established
// connection.
//
// The transport selects HTTP/2 when the connection negotiated "h2" via
// ALPN and HTTP/1.1 otherwise. Keep-alives are disabled for HTTP/1.1
// because the transport owns exactly one connection.
//
// The caller is responsible for calling [*ConnTransport.Close] when done.
//
// Construct using [NewConnTransport].
type ConnTransport struct {
	// conn is the underlying connection.
	conn net.Conn

	// txp is the HTTP transport.
	txp http.RoundTripper

	// closeIdleFunc closes idle connections in the transport.
	closeIdleFunc func()
}

// NewConnTransport returns a new [*ConnTransport] using the given
// established connection.
//
// The conn may be a plain [net.Conn] or a TLS connection; in the latter
// case we inspect the negotiated ALPN protocol to pick HTTP/2.
func NewConnTransport(conn net.Conn) *ConnTransport {
	// Obtain the protocol that was negotiated
	type connectionStater interface {
		ConnectionState() tls.ConnectionState
	}
	var alpn string
	if csp, ok := conn.(connectionStater); ok {
		alpn = csp.ConnectionState().NegotiatedProtocol
	}

	// Create a special dialer that works just once
	dialer := sud.NewSingleUseDialer(conn)

	// Create proper transport depending on ALPN
	var txp http.RoundTripper
	var closeIdleFunc func()
	switch alpn {
	case "h2":
		h2txp := &http2.Transport{
			DialTLSContext:     dialer.DialTLSContext,
			DisableCompression: false,
		}
		txp = h2txp
		closeIdleFunc = h2txp.CloseIdleConnections

	default:
		h1txp := &http.Transport{
			DialContext:        dialer.DialContext,
			DialTLSContext:     dialer.DialContext,
			DisableKeepAlives:  true,
			DisableCompression: false,
		}
		txp = h1txp
		closeIdleFunc = h1txp.CloseIdleConnections
	}

	return &ConnTransport{
		conn:          conn,
		txp:           txp,
		closeIdleFunc: closeIdleFunc,
	}
}

var _ http.RoundTripper = &ConnTransport{}

// RoundTrip implements [http.RoundTripper].
func (ct *ConnTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return ct.txp.RoundTrip(req)
}

// Close cleans up the transport and closes the underlying connection.
func (ct *ConnTransport) Close() error {
	ct.closeIdleFunc()
	return ct.conn.Close()
}

// Conn returns the underlying [net.Conn] used by this [*ConnTransport].
//
// This method exists to support logging operations that need connection
// metadata (local/remote addresses, network type).
func (ct *ConnTransport) Conn() net.Conn {
	return ct.conn
}
