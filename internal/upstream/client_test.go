package upstream

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/config"
)

func TestUnitTest_ClientDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := NewClient(config.UpstreamSettings{Timeout: 5 * time.Second})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestUnitTest_ClientClassifiesFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		c := NewClient(config.UpstreamSettings{Timeout: 5 * time.Second})
		req, err := http.NewRequest(http.MethodGet, addr, nil)
		require.NoError(t, err)

		_, err = c.Do(req)
		require.Error(t, err)

		var pe *cerr.ProxyError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(config.UpstreamSettings{Timeout: 50 * time.Millisecond})
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		_, err = c.Do(req)
		require.Error(t, err)
		assert.Equal(t, http.StatusGatewayTimeout, cerr.NewProxyError("upstream", err).StatusCode)
	})
}

func TestUnitTest_NewTransport(t *testing.T) {
	off := false
	tr := NewTransport(config.UpstreamSettings{SkipTLSVerify: true, MaxIdlePerHost: 4, HTTP2: &off})
	ht := tr.HTTPTransport()

	assert.Equal(t, 4, ht.MaxIdleConnsPerHost)
	assert.Equal(t, DefaultIdleConnTimeout, ht.IdleConnTimeout)
	assert.True(t, ht.TLSClientConfig.InsecureSkipVerify)
	assert.False(t, ht.ForceAttemptHTTP2)
	assert.Equal(t, []string{"http/1.1"}, ht.TLSClientConfig.NextProtos)

	tr = NewTransport(config.UpstreamSettings{})
	assert.True(t, tr.HTTPTransport().ForceAttemptHTTP2)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, tr.HTTPTransport().MaxIdleConnsPerHost)
}

func TestUnitTest_BufferPool(t *testing.T) {
	p := NewBufferPool()
	buf := p.Get()
	require.Len(t, buf, 32*1024)
	p.Put(buf)
}
