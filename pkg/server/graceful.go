// Package server runs the metrics endpoint of the command line tools with
// graceful shutdown and SIGHUP configuration reload.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-nodegraph/pkg/health"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
)

// ConfigReloadFunc is a function that reloads configuration
type ConfigReloadFunc func() error

// MetricsHandler serves the registry at /metrics and the checks at
// /healthz. A nil checker answers /healthz with a plain ok.
func MetricsHandler(m *metrics.Registry, hc *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	if hc != nil {
		mux.Handle("/healthz", hc.Handler())
		return mux
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// GracefulServer wraps an HTTP server with graceful shutdown capabilities
type GracefulServer struct {
	server         *http.Server
	logger         logging.Logger
	listener       net.Listener
	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	configReloadFn ConfigReloadFunc
	configMu       sync.RWMutex
}

// NewGracefulServer creates a new graceful HTTP server. A nil logger means
// the process default.
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:     logger.With(logging.Component("metrics-server")),
		shutdownCh: make(chan struct{}),
	}
}

// Listen binds the address so bind errors surface before serving starts
func (gs *GracefulServer) Listen() error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return err
	}
	gs.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (gs *GracefulServer) Addr() string {
	if gs.listener != nil {
		return gs.listener.Addr().String()
	}
	return gs.server.Addr
}

// Start serves until Shutdown. It listens first if Listen was not called.
func (gs *GracefulServer) Start() error {
	if gs.listener == nil {
		if err := gs.Listen(); err != nil {
			return err
		}
	}

	go gs.handleSignals()

	gs.logger.Info("starting HTTP server", logging.String("addr", gs.Addr()))
	if err := gs.server.Serve(gs.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown initiates a graceful shutdown
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("initiating graceful shutdown", logging.Duration("timeout", timeout))

		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.logger.Error("error during shutdown", logging.Error(shutdownErr))
		} else {
			gs.logger.Info("server shutdown complete")
		}
	})
	return err
}

// handleSignals shuts down on SIGINT/SIGTERM and reloads on SIGHUP
func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-gs.shutdownCh:
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				gs.logger.Info("received signal, shutting down", logging.String("signal", sig.String()))
				if err := gs.Shutdown(30 * time.Second); err != nil {
					gs.logger.Error("shutdown error", logging.Error(err))
				}
				return

			case syscall.SIGHUP:
				gs.logger.Info("received SIGHUP, reloading configuration")
				_ = gs.ReloadConfig()
			}
		}
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetConfigReloadFunc sets the function to call when configuration reload is triggered
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.configMu.Lock()
	defer gs.configMu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig triggers a configuration reload
func (gs *GracefulServer) ReloadConfig() error {
	gs.configMu.RLock()
	reloadFn := gs.configReloadFn
	gs.configMu.RUnlock()

	if reloadFn == nil {
		gs.logger.Warn("configuration reload requested, but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}

	gs.logger.Info("configuration reload complete")
	return nil
}
