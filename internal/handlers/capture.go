package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/victorgomez09/interceptor/internal/capture"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/pkg/trace"
	"go.uber.org/zap"
)

// Recorder stores captured transactions. *capture.Store implements it.
type Recorder interface {
	Insert(ctx context.Context, r capture.Record) (int64, error)
}

// Capture records a summary of every response that reaches it.
type Capture struct {
	chain.Passthrough
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewCapture(recorder Recorder, logger *zap.Logger) *Capture {
	return &Capture{recorder: recorder, logger: logger, now: time.Now}
}

func (c *Capture) Name() string {
	return "capture"
}

func (c *Capture) HandleResponse(ctx context.Context, resp *http.Response) (*http.Response, error) {
	rec := capture.Record{
		Status:    resp.StatusCode,
		Cache:     resp.Header.Get(CacheHeader),
		CreatedAt: c.now(),
	}
	if req := resp.Request; req != nil {
		rec.Method = req.Method
		rec.Host = req.Host
		rec.URL = target(req)
		rec.RequestID = trace.GetRequestID(req.Context())
		rec.Duration = trace.Elapsed(req.Context())
	}

	if _, err := c.recorder.Insert(ctx, rec); err != nil {
		c.logger.Warn("Failed to capture transaction", zap.String("url", rec.URL), zap.Error(err))
	}
	return resp, nil
}
