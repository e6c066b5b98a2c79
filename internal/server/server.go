// Package server runs the listener of a hosting mode and ties it to the shutdown manager.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/victorgomez09/interceptor/internal/logger"
	"github.com/victorgomez09/interceptor/internal/shutdown"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// default configurations
const (
	ReadHeaderTimeout   = 10 * time.Second
	ReadTimeout         = 15 * time.Second
	WriteTimeout        = 15 * time.Second
	IdleTimeout         = 60 * time.Second
	ShutdownGracePeriod = 15 * time.Second
)

// Server wraps an http.Server bound to one address.
type Server struct {
	name     string
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
	wg       sync.WaitGroup
}

type Option func(*Server)

// WithTimeouts overrides the read and write timeouts. Zero disables them,
// which the forward mode needs for long lived CONNECT tunnels.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.server.ReadTimeout = read
		s.server.WriteTimeout = write
	}
}

func NewServer(name, addr string, handler http.Handler, zLog *zap.Logger, opts ...Option) *Server {
	s := &Server{
		name:   strings.ToUpper(name),
		logger: zLog,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: ReadHeaderTimeout,
			ReadTimeout:       ReadTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
			ErrorLog:          logger.NewStdLogger(zLog, zapcore.WarnLevel, "http"),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewReverseHandler mounts h as the catch-all route.
func NewReverseHandler(h http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", h)
	return mux
}

// Start binds the listener and serves in the background. Serve failures are
// reported on errorChan. The server registers itself with sm.
func (s *Server) Start(errorChan chan<- error, sm *shutdown.Manager) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.runServer(errorChan)

	if sm != nil {
		sm.RegisterShutdown(s.name+" server", s.Shutdown)
	}
	return nil
}

func (s *Server) runServer(errorChan chan<- error) {
	defer s.wg.Done()

	s.logger.Info("Server started", zap.String("server_name", s.name), zap.String("listen_on", s.listener.Addr().String()))

	err := s.server.Serve(s.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Error starting server", zap.String("server_name", s.name), zap.Error(err))
		errorChan <- err
		return
	}
	s.logger.Info("Server stopped gracefully", zap.String("server_name", s.name))
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	return err
}
