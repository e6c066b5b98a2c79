package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
)

// Security sets security related response headers.
type Security struct {
	chain.Passthrough
	cfg config.Security
}

func NewSecurity(cfg config.Security) *Security {
	return &Security{cfg: cfg}
}

func (s *Security) Name() string {
	return "security"
}

func (s *Security) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	if s.cfg.HSTS {
		value := fmt.Sprintf("max-age=%d", s.cfg.HSTSMaxAge)
		if s.cfg.HSTSIncludeSubDomains {
			value += "; includeSubDomains"
		}
		if s.cfg.HSTSPreload {
			value += "; preload"
		}
		resp.Header.Set("Strict-Transport-Security", value)
	}

	if s.cfg.FrameOptions != "" {
		resp.Header.Set("X-Frame-Options", s.cfg.FrameOptions)
	}

	if s.cfg.ContentTypeOptions {
		resp.Header.Set("X-Content-Type-Options", "nosniff")
	}

	if s.cfg.HideServer {
		resp.Header.Del("Server")
		resp.Header.Del("X-Powered-By")
	}
	return resp, nil
}
