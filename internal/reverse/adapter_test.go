package reverse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
	"github.com/victorgomez09/interceptor/internal/upstream"
	"go.uber.org/zap"
)

type clientFunc func(*http.Request) (*http.Response, error)

func (f clientFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// spy counts both phases and optionally short-circuits or fails.
type spy struct {
	requests     atomic.Int64
	responses    atomic.Int64
	shortCircuit bool
	reqErr       error
	respErr      error
	reqPanic     bool
	respPanic    bool
}

func (p *spy) Name() string { return "spy" }

func (p *spy) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	p.requests.Add(1)
	if p.reqPanic {
		panic("request handler bug")
	}
	if p.reqErr != nil {
		return chain.Outcome{}, p.reqErr
	}
	if p.shortCircuit {
		return chain.Respond(chain.NewResponse(req, http.StatusAccepted, "text/plain", []byte("local"))), nil
	}
	return chain.Pass(req), nil
}

func (p *spy) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	p.responses.Add(1)
	if p.respPanic {
		var m map[string]int
		m["boom"]++
	}
	if p.respErr != nil {
		return nil, p.respErr
	}
	return resp, nil
}

func mustResolver(t *testing.T, def string) *Resolver {
	t.Helper()
	r, err := NewResolver(def, nil)
	require.NoError(t, err)
	return r
}

func decodeError(t *testing.T, body io.Reader) cerr.ErrorResponse {
	t.Helper()
	var er cerr.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&er))
	return er
}

func TestIntegrationTest_EmptyChainForwardsUnmodified(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	}))
	defer origin.Close()

	client := upstream.NewClient(config.UpstreamSettings{Timeout: 5 * time.Second})
	adapter := NewAdapter(chain.New(), client, mustResolver(t, origin.URL), zap.NewNop())
	front := httptest.NewServer(adapter)
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestUnitTest_OutboundRequest(t *testing.T) {
	var got *http.Request
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		return chain.NewResponse(req, http.StatusOK, "", nil), nil
	})
	adapter := NewAdapter(chain.New(), client, mustResolver(t, "https://origin.internal:8443/base"), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/items?id=1", nil)
	req.Host = "proxy.example.com"
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("Connection", "keep-alive, X-Secret")
	req.Header.Set("X-Secret", "1")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("X-Forwarded-For", "192.168.1.1")

	resp := adapter.Intercept(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, got)

	assert.Equal(t, "https://origin.internal:8443/base/items?id=1", got.URL.String())
	assert.Equal(t, "origin.internal:8443", got.Host)
	assert.Empty(t, got.RequestURI)
	assert.Empty(t, got.Header.Get("Connection"))
	assert.Empty(t, got.Header.Get("X-Secret"))
	assert.Empty(t, got.Header.Get("Proxy-Authorization"))
	assert.Equal(t, "192.168.1.1, 10.0.0.1", got.Header.Get(HeaderXForwardedFor))
	assert.Equal(t, "proxy.example.com", got.Header.Get(HeaderXForwardedHost))
	assert.Equal(t, "http", got.Header.Get(HeaderXForwardedProto))
	assert.Same(t, req, resp.Request, "response phase sees the inbound request")
}

func TestUnitTest_ShortCircuitSkipsUpstream(t *testing.T) {
	var calls atomic.Int64
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("must not be called")
	})
	p := &spy{shortCircuit: true}
	adapter := NewAdapter(chain.New(p), client, mustResolver(t, "http://origin"), zap.NewNop())

	rec := httptest.NewRecorder()
	adapter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "local", rec.Body.String())
	assert.Zero(t, calls.Load())
	assert.Equal(t, int64(1), p.responses.Load(), "short-circuit responses still run the response phase")
}

func TestUnitTest_FailureFallbacks(t *testing.T) {
	okClient := clientFunc(func(req *http.Request) (*http.Response, error) {
		return chain.NewResponse(req, http.StatusOK, "", []byte("OK")), nil
	})

	tests := []struct {
		name          string
		handler       *spy
		client        Client
		resolver      *Resolver
		wantStatus    int
		wantResponses int64
	}{
		{
			name:       "request phase error",
			handler:    &spy{reqErr: errors.New("boom")},
			client:     okClient,
			resolver:   mustResolver(t, "http://origin"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "handler chosen status",
			handler:    &spy{reqErr: cerr.HandlerError("auth", http.StatusForbidden, "Forbidden")},
			client:     okClient,
			resolver:   mustResolver(t, "http://origin"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:    "transport failure",
			handler: &spy{},
			client: clientFunc(func(*http.Request) (*http.Response, error) {
				return nil, cerr.ErrUpstreamTimeout
			}),
			resolver:   mustResolver(t, "http://origin"),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "no upstream",
			handler:    &spy{},
			client:     okClient,
			resolver:   mustResolver(t, ""),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:          "response phase error",
			handler:       &spy{respErr: errors.New("boom")},
			client:        okClient,
			resolver:      mustResolver(t, "http://origin"),
			wantStatus:    http.StatusBadGateway,
			wantResponses: 1,
		},
		{
			name:       "request phase panic",
			handler:    &spy{reqPanic: true},
			client:     okClient,
			resolver:   mustResolver(t, "http://origin"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:          "response phase panic",
			handler:       &spy{respPanic: true},
			client:        okClient,
			resolver:      mustResolver(t, "http://origin"),
			wantStatus:    http.StatusBadGateway,
			wantResponses: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewAdapter(chain.New(tt.handler), tt.client, tt.resolver, zap.NewNop())

			rec := httptest.NewRecorder()
			adapter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "error", decodeError(t, rec.Body).Status)
			assert.Equal(t, tt.wantResponses, tt.handler.responses.Load())
		})
	}
}

func TestUnitTest_Resolver(t *testing.T) {
	r, err := NewResolver("http://default:8080", map[string]string{
		"api.example.com":      "http://api:9000",
		"admin.example.com:81": "https://admin",
	})
	require.NoError(t, err)

	tests := []struct {
		host string
		want string
	}{
		{"api.example.com", "http://api:9000"},
		{"API.example.com:4000", "http://api:9000"},
		{"admin.example.com:81", "https://admin"},
		{"admin.example.com", "http://default:8080"},
		{"other", "http://default:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			u, err := r.Resolve(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}

	empty, err := NewResolver("", nil)
	require.NoError(t, err)
	_, err = empty.Resolve("any")
	require.ErrorIs(t, err, cerr.ErrNoUpstream)

	_, err = NewResolver("ftp://nope", nil)
	require.Error(t, err)
}
