package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager runs shutdown hooks in registration order. Listeners are registered
// before the stores their handlers write to, so in-flight transactions drain first.
type Manager struct {
	handlers []func(context.Context) error
	mu       sync.Mutex
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		handlers: make([]func(context.Context) error, 0),
		logger:   logger,
	}
}

func (sh *Manager) AddHandler(handler func(context.Context) error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.handlers = append(sh.handlers, handler)
}

// Shutdown runs every hook even when one fails and returns the joined errors.
// It stops early only when ctx expires.
func (sh *Manager) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	handlers := make([]func(context.Context) error, len(sh.handlers))
	copy(handlers, sh.handlers)
	sh.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := h(ctx); err != nil {
			sh.logger.Error("Error during shutdown", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sh *Manager) RegisterShutdown(name string, shutdown func(context.Context) error) {
	sh.AddHandler(func(ctx context.Context) error {
		if err := shutdown(ctx); err != nil {
			return fmt.Errorf("%s shutdown: %w", name, err)
		}
		sh.logger.Info("Component stopped", zap.String("component", name))
		return nil
	})
}

// RegisterCloser registers a hook for components without a context-aware shutdown.
func (sh *Manager) RegisterCloser(name string, close func() error) {
	sh.RegisterShutdown(name, func(context.Context) error {
		return close()
	})
}
