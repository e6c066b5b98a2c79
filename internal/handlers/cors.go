package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
)

// CORS answers preflight requests and sets the CORS headers on every response.
type CORS struct {
	cfg config.CORS
}

func NewCORS(cfg config.CORS) *CORS {
	return &CORS{cfg: cfg}
}

func (c *CORS) Name() string {
	return "cors"
}

// HandleRequest short-circuits preflight requests with 204.
func (c *CORS) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
		return chain.Respond(chain.NewResponse(req, http.StatusNoContent, "", nil)), nil
	}
	return chain.Pass(req), nil
}

func (c *CORS) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	h := resp.Header
	if len(c.cfg.AllowedOrigins) > 0 {
		if len(c.cfg.AllowedOrigins) == 1 && c.cfg.AllowedOrigins[0] == "*" {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if origin := c.matchOrigin(resp.Request); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
	}

	if len(c.cfg.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(c.cfg.AllowedMethods, ","))
	}

	if len(c.cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(c.cfg.AllowedHeaders, ","))
	}

	if len(c.cfg.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.cfg.ExposedHeaders, ","))
	}

	if c.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if c.cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.cfg.MaxAge))
	}
	return resp, nil
}

// matchOrigin returns the request Origin when it is in the allowed list.
func (c *CORS) matchOrigin(req *http.Request) string {
	if req == nil {
		return ""
	}
	origin := req.Header.Get("Origin")
	for _, allowed := range c.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
