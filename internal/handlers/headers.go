package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
)

// Headers adds, overrides and removes request and response headers.
// Values may reference ${remote_addr}, ${host}, ${uri} and ${method}.
type Headers struct {
	headerConfig config.Header
	placeholders map[string]func(*http.Request) string
}

func NewHeaders(cfg config.Header) *Headers {
	return &Headers{
		headerConfig: cfg,
		placeholders: map[string]func(*http.Request) string{
			"${remote_addr}": func(r *http.Request) string { return r.RemoteAddr },
			"${host}":        func(r *http.Request) string { return r.Host },
			"${uri}":         func(r *http.Request) string { return r.URL.RequestURI() },
			"${method}":      func(r *http.Request) string { return r.Method },
		},
	}
}

func (h *Headers) Name() string {
	return "headers"
}

func (h *Headers) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	for _, header := range h.headerConfig.RemoveRequestHeaders {
		req.Header.Del(header)
	}
	for key, value := range h.headerConfig.RequestHeaders {
		req.Header.Set(key, h.processPlaceholders(value, req))
	}
	return chain.Pass(req), nil
}

func (h *Headers) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	for _, header := range h.headerConfig.RemoveResponseHeaders {
		resp.Header.Del(header)
	}
	for key, value := range h.headerConfig.ResponseHeaders {
		resp.Header.Set(key, h.processPlaceholders(value, resp.Request))
	}
	return resp, nil
}

// processPlaceholders replaces placeholder values with actual request values
func (h *Headers) processPlaceholders(value string, req *http.Request) string {
	if req == nil {
		return value
	}

	result := value
	for placeholder, getter := range h.placeholders {
		if strings.Contains(result, placeholder) {
			result = strings.ReplaceAll(result, placeholder, getter(req))
		}
	}
	return result
}
