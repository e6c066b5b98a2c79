// Package handlers contains the chain handlers that can be enabled from configuration.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/victorgomez09/interceptor/internal/cache"
	"github.com/victorgomez09/interceptor/internal/capture"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
	"go.uber.org/zap"
)

// Set is the result of Build. It owns the stores opened for the handlers.
type Set struct {
	Handlers []chain.Handler
	Stats    *Stats // nil unless a stats handler is configured.

	closers []io.Closer
}

// Chain returns the handlers as a chain.
func (s *Set) Chain() chain.Chain {
	return chain.New(s.Handlers...)
}

// Close releases the stores opened by Build.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates the handlers described by cfgs, in order.
func Build(ctx context.Context, cfgs []config.Handler, logger *zap.Logger) (*Set, error) {
	set := &Set{}
	for i, hc := range cfgs {
		h, err := set.build(ctx, hc, logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("handlers[%d]: %w", i, err)
		}
		set.Handlers = append(set.Handlers, h)
		logger.Info("Handler configured", zap.Int("position", i), zap.String("handler", h.Name()))
	}
	return set, nil
}

func (s *Set) build(ctx context.Context, hc config.Handler, logger *zap.Logger) (chain.Handler, error) {
	switch {
	case hc.Logging != nil:
		return NewLogging(logger,
			WithHeaders(hc.Logging.Headers),
			WithQueryParams(hc.Logging.QueryParams),
			WithExcludePaths(hc.Logging.ExcludePaths),
		), nil

	case hc.RequestID != nil:
		return NewRequestID(hc.RequestID.Header), nil

	case hc.Headers != nil:
		return NewHeaders(*hc.Headers), nil

	case hc.RateLimit != nil:
		return NewRateLimit(hc.RateLimit.RequestsPerSecond, hc.RateLimit.Burst), nil

	case hc.BasicAuth != nil:
		return NewBasicAuth(*hc.BasicAuth), nil

	case hc.JWTAuth != nil:
		return NewJWTAuth(*hc.JWTAuth), nil

	case hc.Cache != nil:
		var store cache.Cache
		if r := hc.Cache.Redis; r != nil {
			rc := cache.NewRedisCache(cache.RedisConfig{
				Address:  r.Address,
				Password: r.Password,
				DB:       r.DB,
			}, logger)
			if err := rc.Healthcheck(ctx); err != nil {
				logger.Warn("Redis is not reachable yet, cache lookups will miss", zap.String("address", r.Address), zap.Error(err))
			}
			store = rc
		} else {
			store = cache.NewInMemoryCache()
		}
		s.closers = append(s.closers, store)
		return NewCache(store, hc.Cache.TTL, logger), nil

	case hc.Capture != nil:
		store, err := capture.Open(hc.Capture.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		if hc.Capture.Retention > 0 {
			pruned, err := store.Prune(ctx, time.Now().Add(-hc.Capture.Retention))
			if err != nil {
				logger.Warn("Failed to prune captured transactions", zap.Error(err))
			} else {
				logger.Info("Pruned captured transactions", zap.Int64("removed", pruned), zap.Duration("retention", hc.Capture.Retention))
			}
		}
		return NewCapture(store, logger), nil

	case hc.Security != nil:
		return NewSecurity(*hc.Security), nil

	case hc.CORS != nil:
		return NewCORS(*hc.CORS), nil

	case hc.Compress != nil:
		return NewCompress(hc.Compress.MinSize), nil

	case hc.Stats != nil:
		if s.Stats == nil {
			s.Stats = NewStats()
		}
		return s.Stats, nil
	}
	return nil, config.ErrNoHandlerType
}
