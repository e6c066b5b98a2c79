package handlers

import (
	"context"
	"net/http"

	"github.com/victorgomez09/interceptor/internal/chain"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 20
	defaultBurst             = 50
)

// RateLimit short-circuits with 429 once the shared token bucket is empty.
type RateLimit struct {
	chain.Passthrough
	limiter *rate.Limiter
}

// NewRateLimit sets up the limiter with the specified requests per second and burst size.
// Zero values fall back to 20 rps and a burst of 50.
func NewRateLimit(rps float64, burst int) *RateLimit {
	if burst == 0 {
		burst = defaultBurst
	}
	if rps == 0 {
		rps = defaultRequestsPerSecond
	}

	return &RateLimit{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (m *RateLimit) Name() string {
	return "rate_limit"
}

func (m *RateLimit) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	if !m.limiter.Allow() {
		resp := chain.NewResponse(req, http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte("Too Many Requests\n"))
		resp.Header.Set("Retry-After", "1")
		return chain.Respond(resp), nil
	}
	return chain.Pass(req), nil
}
