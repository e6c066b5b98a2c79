// Package forward hosts a chain inside the goproxy MITM engine.
package forward

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/victorgomez09/interceptor/internal/ca"
	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
	"github.com/victorgomez09/interceptor/internal/logger"
	"github.com/victorgomez09/interceptor/internal/upstream"
	"github.com/victorgomez09/interceptor/pkg/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// transaction is stored in ProxyCtx.UserData for the lifetime of one exchange.
type transaction struct {
	fallback bool
}

// Adapter translates goproxy request and response callbacks into chain calls.
// It never lets a chain error reach the engine.
type Adapter struct {
	chain  chain.Chain
	logger *zap.Logger
}

func NewAdapter(c chain.Chain, logger *zap.Logger) *Adapter {
	return &Adapter{
		chain:  c,
		logger: logger.With(zap.String("prefix", "FORWARD")),
	}
}

// HandleRequest implements goproxy.ReqHandler. A panicking handler is
// recovered and answered with the fallback response.
func (a *Adapter) HandleRequest(req *http.Request, ctx *goproxy.ProxyCtx) (next *http.Request, resp *http.Response) {
	tx := &transaction{}
	ctx.UserData = tx

	req = req.WithContext(trace.WithStart(req.Context(), time.Now()))
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Handler panicked in request phase",
				zap.String("url", requestURL(req)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			tx.fallback = true
			next, resp = req, cerr.Response(req, "request_phase", cerr.Recovered(r))
		}
	}()

	out, err := a.chain.ProcessRequest(req.Context(), req)
	if err != nil {
		a.logger.Error("Request phase failed", zap.String("url", req.URL.String()), zap.Error(err))
		tx.fallback = true
		return req, cerr.Response(req, "request_phase", err)
	}
	if out.ShortCircuited() {
		return req, out.Response()
	}
	return out.Request(), nil
}

// HandleResponse implements goproxy.RespHandler. goproxy calls it for origin
// responses and for responses returned by HandleRequest.
func (a *Adapter) HandleResponse(resp *http.Response, ctx *goproxy.ProxyCtx) (result *http.Response) {
	if tx, ok := ctx.UserData.(*transaction); ok && tx.fallback {
		return resp
	}

	if resp == nil {
		a.logger.Error("Upstream request failed", zap.String("url", requestURL(ctx.Req)), zap.Error(ctx.Error))
		return cerr.Response(ctx.Req, "upstream", ctx.Error)
	}

	req := resp.Request
	if req == nil {
		req = ctx.Req
		resp.Request = req
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Handler panicked in response phase",
				zap.String("url", requestURL(req)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			if resp.Body != nil {
				resp.Body.Close()
			}
			result = cerr.Response(req, "response_phase", cerr.Recovered(r))
		}
	}()

	final, err := a.chain.ProcessResponse(req.Context(), resp)
	if err == nil && final == nil {
		err = chain.ErrInvalidOutcome
	}
	if err != nil {
		if resp.Body != nil {
			resp.Body.Close()
		}
		a.logger.Error("Response phase failed", zap.String("url", requestURL(req)), zap.Error(err))
		return cerr.Response(req, "response_phase", err)
	}
	return final
}

func requestURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.String()
}

// NewProxy builds the goproxy engine with the adapter registered.
// When authority is nil CONNECT tunnels are passed through without interception.
func NewProxy(cfg config.Forward, authority *tls.Certificate, c chain.Chain, tr *upstream.Transport, log *zap.Logger) (*goproxy.ProxyHttpServer, error) {
	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = cfg.Verbose
	proxy.Logger = logger.NewStdLogger(log, zapcore.InfoLevel, "goproxy")
	if tr != nil {
		proxy.Tr = tr.HTTPTransport()
	}

	if authority != nil {
		store, err := ca.NewStore(ca.DefaultStoreSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create certificate store: %w", err)
		}
		proxy.CertStore = store
		mitm := &goproxy.ConnectAction{
			Action:    goproxy.ConnectMitm,
			TLSConfig: goproxy.TLSConfigFromCA(authority),
		}
		proxy.OnRequest().HandleConnectFunc(func(host string, _ *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
			return mitm, host
		})
	}

	adapter := NewAdapter(c, log)
	proxy.OnRequest().Do(goproxy.FuncReqHandler(adapter.HandleRequest))
	proxy.OnResponse().Do(goproxy.FuncRespHandler(adapter.HandleResponse))

	log.Info("Forward proxy configured",
		zap.Bool("mitm", authority != nil),
		zap.Strings("handlers", c.Names()),
		zap.Bool("verbose", cfg.Verbose))
	return proxy, nil
}
