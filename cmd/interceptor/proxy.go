package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/victorgomez09/interceptor/internal/ca"
	"github.com/victorgomez09/interceptor/internal/config"
	"github.com/victorgomez09/interceptor/internal/forward"
	"github.com/victorgomez09/interceptor/internal/handlers"
	"github.com/victorgomez09/interceptor/internal/reverse"
	"github.com/victorgomez09/interceptor/internal/server"
	"github.com/victorgomez09/interceptor/internal/shutdown"
	"github.com/victorgomez09/interceptor/internal/upstream"
	"go.uber.org/zap"
)

// buildHandlers creates the configured handlers in chain order.
func buildHandlers(ctx context.Context, cfg *config.Interceptor, zLog *zap.Logger) (*handlers.Set, error) {
	set, err := handlers.Build(ctx, cfg.Handlers, zLog)
	if err != nil {
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}
	return set, nil
}

// registerCleanup adds the hooks that must run after the listener has drained.
// The listener registers itself on Start, so it always comes first.
func registerCleanup(sm *shutdown.Manager, set *handlers.Set, tr *upstream.Transport, zLog *zap.Logger) {
	if set.Stats != nil {
		sm.RegisterCloser("Stats", func() error {
			s := set.Stats.Snapshot()
			zLog.Info("Transaction statistics",
				zap.Int64("requests", s.Requests),
				zap.Int64("responses", s.Responses),
				zap.Int64("status_2xx", s.Status2xx),
				zap.Int64("status_3xx", s.Status3xx),
				zap.Int64("status_4xx", s.Status4xx),
				zap.Int64("status_5xx", s.Status5xx))
			return nil
		})
	}
	sm.RegisterCloser("Handler stores", set.Close)
	sm.RegisterCloser("Upstream transport", func() error {
		tr.CloseIdleConnections()
		return nil
	})
}

func startForward(ctx context.Context, cfg *config.Interceptor, errChan chan<- error, sm *shutdown.Manager, zLog *zap.Logger) error {
	authority, err := ca.Load(cfg.Forward.CAKey, cfg.Forward.CACert, zLog)
	if err != nil {
		return err
	}

	set, err := buildHandlers(ctx, cfg, zLog)
	if err != nil {
		return err
	}

	tr := upstream.NewTransport(cfg.Upstream)
	proxy, err := forward.NewProxy(cfg.Forward, authority, set.Chain(), tr, zLog)
	if err != nil {
		set.Close()
		return err
	}

	addr := net.JoinHostPort(cfg.Forward.Host, strconv.Itoa(cfg.Forward.Port))
	srv := server.NewServer("forward", addr, proxy, zLog, server.WithTimeouts(0, 0))
	if err := srv.Start(errChan, sm); err != nil {
		set.Close()
		return err
	}
	registerCleanup(sm, set, tr, zLog)
	return nil
}

func startReverse(ctx context.Context, cfg *config.Interceptor, errChan chan<- error, sm *shutdown.Manager, zLog *zap.Logger) error {
	resolver, err := reverse.NewResolver(cfg.Reverse.Upstream, cfg.Reverse.Hosts)
	if err != nil {
		return err
	}

	set, err := buildHandlers(ctx, cfg, zLog)
	if err != nil {
		return err
	}

	client := upstream.NewClient(cfg.Upstream)
	adapter := reverse.NewAdapter(set.Chain(), client, resolver, zLog)
	zLog.Info("Reverse proxy configured",
		zap.String("upstream", cfg.Reverse.Upstream),
		zap.Int("hosts", len(cfg.Reverse.Hosts)),
		zap.Strings("handlers", set.Chain().Names()))

	addr := net.JoinHostPort(cfg.Reverse.Host, strconv.Itoa(cfg.Reverse.Port))
	srv := server.NewServer("reverse", addr, server.NewReverseHandler(adapter), zLog)
	if err := srv.Start(errChan, sm); err != nil {
		set.Close()
		return err
	}
	registerCleanup(sm, set, client.Transport(), zLog)
	return nil
}
