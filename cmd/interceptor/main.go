package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/victorgomez09/interceptor/internal/config"
	"github.com/victorgomez09/interceptor/internal/logger"
	"github.com/victorgomez09/interceptor/internal/server"
	"github.com/victorgomez09/interceptor/internal/shutdown"
	"go.uber.org/zap"
)

const (
	cmdForward = "forward-proxy"
	cmdReverse = "reverse-proxy"
)

const usage = `Usage: interceptor <command> [flags]

Commands:
  forward-proxy   run the transparent (MITM) proxy
  reverse-proxy   run the explicit proxy in front of an upstream origin

Run 'interceptor <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	cfg, err := parseFlags(cmd, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	zLog, err := logger.New("interceptor", cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zLog.Sync()

	reverse := cmd == cmdReverse
	if err := cfg.Validate(reverse, zLog); err != nil {
		zLog.Fatal("Invalid configuration", zap.Error(err))
	}

	errChan := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm := shutdown.NewManager(zLog)
	if reverse {
		err = startReverse(ctx, cfg, errChan, sm, zLog)
	} else {
		err = startForward(ctx, cfg, errChan, sm, zLog)
	}
	if err != nil {
		if shutdownErr := sm.Shutdown(context.Background()); shutdownErr != nil {
			zLog.Error("Error during cleanup", zap.Error(shutdownErr))
		}
		zLog.Fatal("Failed to start proxy", zap.String("mode", cmd), zap.Error(err))
	}

	runServer(ctx, cancel, sm, errChan, zLog)
}

// parseFlags loads the configuration file named by --config and applies the
// flags explicitly set on the command line on top of it.
func parseFlags(cmd string, args []string) (*config.Interceptor, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config file")
	port := fs.Int("port", 0, "listen port")

	var caKey, caCert, upstream *string
	switch cmd {
	case cmdForward:
		caKey = fs.String("ca-key", config.DefaultCAKey, "path of the ca key")
		caCert = fs.String("ca-cert", config.DefaultCACert, "path of the ca cert")
	case cmdReverse:
		upstream = fs.String("upstream", "", "default upstream origin, e.g. http://localhost:8080")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			if cmd == cmdForward {
				cfg.Forward.Port = *port
			} else {
				cfg.Reverse.Port = *port
			}
		case "ca-key":
			cfg.Forward.CAKey = *caKey
		case "ca-cert":
			cfg.Forward.CACert = *caCert
		case "upstream":
			cfg.Reverse.Upstream = *upstream
		}
	})
	return cfg, nil
}

// runServer waits for a shutdown signal or a server error and then runs the shutdown hooks.
func runServer(
	ctx context.Context,
	cancel context.CancelFunc,
	sm *shutdown.Manager,
	errChan chan error,
	zLog *zap.Logger,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zLog.Warn("Shutdown signal received. Initializing graceful shutdown")
	case err := <-errChan:
		zLog.Error("Server error triggered shutdown", zap.Error(err))
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := sm.Shutdown(shutdownCtx); err != nil {
		zLog.Error("Error during shutdown", zap.Error(err))
		return
	}
	zLog.Info("Server shutdown completed")
}
