// Package reverse hosts a chain behind a plain HTTP listener and forwards
// passed requests to a configured upstream origin.
package reverse

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/upstream"
	"github.com/victorgomez09/interceptor/pkg/trace"
	"go.uber.org/zap"
)

const (
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXForwardedHost  = "X-Forwarded-Host"
	HeaderXForwardedProto = "X-Forwarded-Proto"
)

// Hop-by-hop headers. These are removed when sent to the upstream and when
// copied back to the client.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client executes one fully formed outbound request.
// *upstream.Client implements it.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter serves inbound requests through the chain.
type Adapter struct {
	chain    chain.Chain
	client   Client
	resolver *Resolver
	logger   *zap.Logger
	buffers  *upstream.BufferPool
}

func NewAdapter(c chain.Chain, client Client, resolver *Resolver, logger *zap.Logger) *Adapter {
	return &Adapter{
		chain:    c,
		client:   client,
		resolver: resolver,
		logger:   logger.With(zap.String("prefix", "REVERSE")),
		buffers:  upstream.NewBufferPool(),
	}
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(trace.WithStart(r.Context(), time.Now()))
	resp := a.Intercept(r)
	a.write(w, resp)
}

// Intercept runs one transaction and always returns a response.
// Chain and upstream failures, including handler panics, become the cerr fallback response.
func (a *Adapter) Intercept(req *http.Request) (result *http.Response) {
	ctx := req.Context()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Handler panicked",
				zap.String("url", req.URL.String()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			result = cerr.Response(req, "handler", cerr.Recovered(r))
		}
	}()

	out, err := a.chain.ProcessRequest(ctx, req)
	if err != nil {
		a.logger.Error("Request phase failed", zap.String("url", req.URL.String()), zap.Error(err))
		return cerr.Response(req, "request_phase", err)
	}

	resp := out.Response()
	if !out.ShortCircuited() {
		resp, err = a.roundTrip(out.Request())
		if err != nil {
			a.logger.Error("Upstream request failed",
				zap.String("host", out.Request().Host),
				zap.String("url", out.Request().URL.String()),
				zap.Error(err))
			return cerr.Response(out.Request(), "upstream", err)
		}
	}

	final, err := a.chain.ProcessResponse(ctx, resp)
	if err == nil && final == nil {
		err = chain.ErrInvalidOutcome
	}
	if err != nil {
		if resp.Body != nil {
			resp.Body.Close()
		}
		a.logger.Error("Response phase failed", zap.String("url", req.URL.String()), zap.Error(err))
		return cerr.Response(req, "response_phase", err)
	}
	return final
}

func (a *Adapter) roundTrip(req *http.Request) (*http.Response, error) {
	target, err := a.resolver.Resolve(req.Host)
	if err != nil {
		return nil, err
	}

	outreq := req.Clone(req.Context())
	outreq.RequestURI = ""
	outreq.URL.Scheme = target.Scheme
	outreq.URL.Host = target.Host
	if target.Path != "" && target.Path != "/" {
		outreq.URL.Path = singleJoiningSlash(target.Path, outreq.URL.Path)
		outreq.URL.RawPath = ""
	}
	outreq.Host = target.Host
	if req.ContentLength == 0 {
		outreq.Body = nil
	}
	outreq.Close = false

	removeHopHeaders(outreq.Header)
	setForwardedHeaders(req, outreq)

	resp, err := a.client.Do(outreq)
	if err != nil {
		return nil, err
	}
	resp.Request = req
	return resp, nil
}

// write copies resp to the client and closes its body.
// Content-Length is left to net/http since handlers may have rewritten the body.
func (a *Adapter) write(w http.ResponseWriter, resp *http.Response) {
	removeHopHeaders(resp.Header)
	resp.Header.Del("Content-Length")
	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return
	}
	defer resp.Body.Close()

	buf := a.buffers.Get()
	defer a.buffers.Put(buf)
	if _, err := io.CopyBuffer(w, resp.Body, buf); err != nil {
		a.logger.Warn("Failed to write response body", zap.Error(err))
	}
}

func removeHopHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = strings.TrimSpace(sf); sf != "" {
				h.Del(sf)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func setForwardedHeaders(in, out *http.Request) {
	if ip, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := in.Header.Values(HeaderXForwardedFor); len(prior) > 0 {
			ip = strings.Join(prior, ", ") + ", " + ip
		}
		out.Header.Set(HeaderXForwardedFor, ip)
	}
	out.Header.Set(HeaderXForwardedHost, in.Host)
	if in.TLS != nil {
		out.Header.Set(HeaderXForwardedProto, "https")
	} else {
		out.Header.Set(HeaderXForwardedProto, "http")
	}
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
