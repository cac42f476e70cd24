// Package transport builds the HTTP round trippers used to reach the
// storefront API.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Kind selects a round tripper implementation.
type Kind string

const (
	// KindStandard is Go's default transport with tuned pool limits.
	KindStandard Kind = "standard"
	// KindChrome presents a Chrome TLS fingerprint. Some storefront CDNs
	// throttle Go's default ClientHello (JA3 matching); this avoids that.
	KindChrome Kind = "chrome"
)

// ParseKind maps a config string to a Kind. Empty means standard.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindStandard:
		return KindStandard, nil
	case KindChrome:
		return KindChrome, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want standard or chrome)", s)
	}
}

// New returns a round tripper of the given kind. dialTimeout bounds the
// TCP connect and TLS handshake; per-request deadlines come from the
// caller's context.
func New(kind Kind, dialTimeout time.Duration) (http.RoundTripper, error) {
	switch kind {
	case KindStandard, "":
		return newStandard(dialTimeout), nil
	case KindChrome:
		return newChrome(dialTimeout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func newStandard(dialTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = dialTimeout
	t.MaxIdleConnsPerHost = 8
	return t
}

// =============================================================================
// CHROME FINGERPRINT
// =============================================================================
//
// uTLS sends a HelloChrome_Auto ClientHello and lets ALPN pick h2 or
// http/1.1. Go's http2.Transport does the framing when h2 is negotiated;
// otherwise the request is replayed over an HTTP/1.1 transport that dials
// the same way.
//
// =============================================================================

// chromeRoundTripper pairs an h2 and an h1 transport sharing one dialer.
type chromeRoundTripper struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func newChrome(dialTimeout time.Duration) *chromeRoundTripper {
	dialer := &net.Dialer{Timeout: dialTimeout}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialUTLS(ctx, dialer, network, addr)
	}

	return &chromeRoundTripper{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			DialTLSContext:    dial,
			ForceAttemptHTTP2: false,
		},
	}
}

// RoundTrip implements http.RoundTripper.
// Plain-http URLs (local development backends) skip the fingerprinting.
func (t *chromeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "http" {
		return t.h1.RoundTrip(req)
	}
	if resp, err := t.h2.RoundTrip(req); err == nil {
		return resp, nil
	}
	// Server did not negotiate h2
	return t.h1.RoundTrip(req)
}

func dialUTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	uconn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return uconn, nil
}
