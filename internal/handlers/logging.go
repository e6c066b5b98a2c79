package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/pkg/trace"
	"go.uber.org/zap"
)

// Logging records every transaction. It is the reference handler: it passes
// requests and responses through untouched and never fails.
// Elapsed time is measured from the start time the hosting adapter stores in the
// request context (see trace.WithStart).
type Logging struct {
	logger         *zap.Logger
	includeHeaders bool
	includeQuery   bool
	excludePaths   []string
}

type LoggingOption func(*Logging)

// enables logging of request headers.
func WithHeaders(enabled bool) LoggingOption {
	return func(l *Logging) {
		l.includeHeaders = enabled
	}
}

// enables logging of query parameters.
func WithQueryParams(enabled bool) LoggingOption {
	return func(l *Logging) {
		l.includeQuery = enabled
	}
}

// excludes specified paths from logging.
func WithExcludePaths(paths []string) LoggingOption {
	return func(l *Logging) {
		l.excludePaths = paths
	}
}

func NewLogging(logger *zap.Logger, opts ...LoggingOption) *Logging {
	l := &Logging{
		logger: logger.With(zap.String("prefix", "INTERCEPT")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logging) Name() string {
	return "logging"
}

func (l *Logging) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	if l.shouldExcludePath(req.URL.Path) {
		return chain.Pass(req), nil
	}

	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.String("method", req.Method),
		zap.String("target", target(req)),
		zap.String("ip", getIPAddress(req)),
		zap.String("user_agent", req.UserAgent()),
	)
	if id := trace.GetRequestID(req.Context()); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	if l.includeQuery && len(req.URL.RawQuery) > 0 {
		queryParams := make(map[string]string)
		for key, values := range req.URL.Query() {
			queryParams[key] = strings.Join(values, ",")
		}
		fields = append(fields, zap.Any("query_params", queryParams))
	}

	if l.includeHeaders {
		headers := make(map[string]string)
		for key, values := range req.Header {
			headers[key] = strings.Join(values, ",")
		}
		fields = append(fields, zap.Any("headers", headers))
	}

	l.logger.Info("Request received", fields...)
	return chain.Pass(req), nil
}

func (l *Logging) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.Int("status", resp.StatusCode))

	if req := resp.Request; req != nil {
		if l.shouldExcludePath(req.URL.Path) {
			return resp, nil
		}
		fields = append(fields,
			zap.String("method", req.Method),
			zap.String("target", target(req)),
			zap.Duration("duration", trace.Elapsed(req.Context())),
		)
		if id := trace.GetRequestID(req.Context()); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
	}
	if resp.ContentLength >= 0 {
		fields = append(fields, zap.Int64("response_size", resp.ContentLength))
	}

	switch {
	case resp.StatusCode >= 500:
		l.logger.Error("Server error", fields...)
	case resp.StatusCode >= 400:
		l.logger.Warn("Client error", fields...)
	default:
		l.logger.Info("Request completed", fields...)
	}
	return resp, nil
}

func (l *Logging) shouldExcludePath(path string) bool {
	for _, excludePath := range l.excludePaths {
		if strings.HasPrefix(path, excludePath) {
			return true
		}
	}
	return false
}

// target renders the request destination. Reverse mode requests carry only a path,
// so the Host header is prepended when the URL is not absolute.
func target(req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	return req.Host + req.URL.RequestURI()
}

// extracts the IP address from the request.
func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, the first is the client
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	ip := r.RemoteAddr
	if colon := strings.LastIndex(ip, ":"); colon != -1 {
		return ip[:colon]
	}
	return ip
}
