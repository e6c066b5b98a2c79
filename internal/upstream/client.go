package upstream

import (
	"net/http"
	"time"

	"github.com/victorgomez09/interceptor/internal/config"
)

// Client performs one upstream exchange per call. Redirects are returned to
// the caller instead of being followed, and failures are never retried.
type Client struct {
	transport *Transport
	client    *http.Client
}

func NewClient(cfg config.UpstreamSettings) *Client {
	tr := NewTransport(cfg)
	return &Client{
		transport: tr,
		client: &http.Client{
			Transport: tr,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do sends req and returns the upstream response.
// For transport failures the returned error wraps a *cerr.ProxyError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// Transport returns the transport used by the client.
func (c *Client) Transport() *Transport {
	return c.transport
}

// Timeout returns the whole-exchange timeout, zero meaning none.
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}
