package handlers

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
)

func TestUnitTest_CORS(t *testing.T) {
	h := NewCORS(config.CORS{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowCredentials: true,
		MaxAge:           600,
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")

		out, err := h.HandleRequest(context.Background(), req)
		require.NoError(t, err)
		require.True(t, out.ShortCircuited())

		resp, err := h.HandleResponse(context.Background(), out.Response())
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET,POST", resp.Header.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "600", resp.Header.Get("Access-Control-Max-Age"))
	})

	t.Run("unknown origin is not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		out, err := h.HandleRequest(context.Background(), req)
		require.NoError(t, err)
		require.False(t, out.ShortCircuited())

		resp, err := h.HandleResponse(context.Background(), okResponse(req, ""))
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestUnitTest_Compress(t *testing.T) {
	h := NewCompress(4)
	payload := strings.Repeat("interceptor ", 100)

	t.Run("gzips when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := h.HandleResponse(context.Background(), okResponse(req, payload))
		require.NoError(t, err)
		assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
		assert.Equal(t, int64(-1), resp.ContentLength)

		gz, err := gzip.NewReader(resp.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
		require.NoError(t, resp.Body.Close())
	})

	t.Run("skips small and unaccepted responses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp, err := h.HandleResponse(context.Background(), okResponse(req, payload))
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Content-Encoding"))

		req.Header.Set("Accept-Encoding", "gzip")
		resp, err = h.HandleResponse(context.Background(), chain.NewResponse(req, http.StatusOK, "", []byte("ab")))
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		assert.Equal(t, "ab", readBody(t, resp))
	})
}
