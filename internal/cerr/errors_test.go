package cerr_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/victorgomez09/interceptor/internal/cerr"
)

func TestUnitTest_NewProxyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   cerr.ProxyErrorCode
	}{
		{"handler failure", errors.New("boom"), http.StatusBadGateway, cerr.ErrCodeHandler},
		{"client cancel", fmt.Errorf("read: %w", context.Canceled), cerr.StatusClientClosedRequest, cerr.ErrCodeClientDisconnect},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, cerr.ErrCodeUpstreamTimeout},
		{"no upstream", cerr.ErrNoUpstream, http.StatusBadGateway, cerr.ErrCodeNoUpstream},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, http.StatusBadGateway, cerr.ErrCodeUpstreamConnFailed},
		{"handler status", cerr.HandlerError("auth", http.StatusForbidden, "denied"), http.StatusForbidden, cerr.ErrCodeHandler},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pe := cerr.NewProxyError("test", tc.err)
			require.Equal(t, tc.status, pe.StatusCode)
			require.Equal(t, tc.code, pe.Code)
		})
	}
}

func TestUnitTest_Response(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := cerr.Response(req, "process_request", errors.New("secret internals"))

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Same(t, req, resp.Request)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), "secret internals")

	var decoded cerr.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "error", decoded.Status)
}

func TestUnitTest_Recovered(t *testing.T) {
	err := cerr.Recovered("nil map write")
	require.ErrorIs(t, err, cerr.ErrHandlerPanic)
	require.Contains(t, err.Error(), "nil map write")

	inner := errors.New("index out of range")
	err = cerr.Recovered(inner)
	require.ErrorIs(t, err, cerr.ErrHandlerPanic)
	require.ErrorIs(t, err, inner)

	pe := cerr.NewProxyError("request_phase", err)
	require.Equal(t, http.StatusBadGateway, pe.StatusCode)
	require.Equal(t, cerr.ErrCodeHandler, pe.Code)
}
