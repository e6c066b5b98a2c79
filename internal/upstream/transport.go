// Package upstream builds the outbound HTTP client shared by both hosting modes.
package upstream

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/config"
)

const (
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections to keep per-host
	DefaultMaxIdleConnsPerHost = 32

	// DefaultIdleConnTimeout is the maximum amount of time an idle connection will remain idle before closing
	DefaultIdleConnTimeout = 30 * time.Second
)

// Transport wraps http.Transport and classifies round trip failures as *cerr.ProxyError.
type Transport struct {
	transport *http.Transport
}

// NewTransport clones the default transport and applies the upstream settings:
// connection pooling, TLS verification and HTTP/2 support.
func NewTransport(cfg config.UpstreamSettings) *Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	tr.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	if cfg.MaxIdlePerHost > 0 {
		tr.MaxIdleConnsPerHost = cfg.MaxIdlePerHost
	}
	tr.IdleConnTimeout = DefaultIdleConnTimeout
	if cfg.IdleConnTimeout > 0 {
		tr.IdleConnTimeout = cfg.IdleConnTimeout
	}

	if tr.TLSClientConfig == nil {
		tr.TLSClientConfig = &tls.Config{}
	}
	tr.TLSClientConfig.InsecureSkipVerify = cfg.SkipTLSVerify

	h2 := cfg.HTTP2 == nil || *cfg.HTTP2
	if !h2 {
		tr.ForceAttemptHTTP2 = false
		tr.TLSClientConfig.NextProtos = []string{"http/1.1"}
		tr.TLSNextProto = make(map[string]func(authority string, c *tls.Conn) http.RoundTripper)
	} else {
		tr.ForceAttemptHTTP2 = true
	}

	return &Transport{transport: tr}
}

// RoundTrip implements the RoundTripper interface for the Transport type.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, cerr.NewProxyError("round_trip", err)
	}

	return r, nil
}

// HTTPTransport returns the underlying http.Transport.
// The forward engine needs the concrete type.
func (t *Transport) HTTPTransport() *http.Transport {
	return t.transport
}

// CloseIdleConnections closes idle upstream connections.
func (t *Transport) CloseIdleConnections() {
	t.transport.CloseIdleConnections()
}
