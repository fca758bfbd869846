package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dd0wney/cluso-nodegraph/pkg/config"
	"github.com/dd0wney/cluso-nodegraph/pkg/eval"
	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/health"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
	"github.com/dd0wney/cluso-nodegraph/pkg/ops"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/server"
)

var (
	configPath  string
	logLevel    string
	metricsAddr string
	workers     int
	traceSpans  bool
	linger      bool

	rootCmd = &cobra.Command{
		Use:   "nodegraph",
		Short: "Evaluate procedural node graphs",
		Long: `nodegraph builds example node networks, evaluates them with
selective re-evaluation and parallel list mapping, and reports what each
pass recomputed.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if linger && app.server != nil {
				app.logger.Info("serving metrics until interrupted", logging.String("addr", app.server.Addr()))
				<-app.server.ShutdownChannel()
			}
			return nil
		},
	}
)

// appContext holds what every subcommand shares
type appContext struct {
	cfg     config.Config
	logger  *logging.JSONLogger
	metrics *metrics.Registry
	reg     *registry.Registry
	tp      *sdktrace.TracerProvider
	server  *server.GracefulServer
	health  *health.Checker
	start   time.Time

	mu       sync.Mutex
	lastPass eval.PassStats
	lastErr  error
	passes   int
}

var app = &appContext{}

func main() {
	err := rootCmd.Execute()
	app.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.IntVarP(&workers, "workers", "w", 0, "elementwise worker count (0 = config)")
	pf.BoolVar(&traceSpans, "trace", false, "write evaluation spans to stderr")
	pf.BoolVar(&linger, "linger", false, "keep serving metrics after the command finishes")

	rootCmd.AddCommand(opsCmd, demoCmd, benchCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	app.start = time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app.cfg = cfg

	app.logger = logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	logging.SetDefaultLogger(app.logger)
	app.metrics = metrics.NewRegistry()

	if app.reg, err = ops.NewRegistry(); err != nil {
		return fmt.Errorf("failed to register operations: %w", err)
	}

	if traceSpans {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create exporter: %w", err)
		}
		app.tp = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "nodegraph"))),
		)
	}

	app.health = health.NewChecker()
	app.health.Register("operations", health.OperationsCheck(app.reg.Len))
	app.health.Register("evaluation", health.PassCheck(app.last))
	app.health.Register("memory", health.MemoryCheck(uint64(cfg.MaxHeapMB)<<20))

	if cfg.MetricsAddr != "" {
		return startMetricsServer(cfg.MetricsAddr)
	}
	return nil
}

// recordPass keeps the outcome of the latest pass for the health check
func (a *appContext) recordPass(st eval.PassStats, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastPass, a.lastErr = st, err
	a.passes++
}

func (a *appContext) last() (eval.PassStats, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPass, a.passes > 0, a.lastErr
}

// loadConfig reads the file and environment, then applies flag overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg, cfg.Validate()
}

func startMetricsServer(addr string) error {
	gs := server.NewGracefulServer(addr, server.MetricsHandler(app.metrics, app.health), app.logger)
	if err := gs.Listen(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	gs.SetConfigReloadFunc(func() error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app.logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
		app.logger.Info("log level reloaded", logging.String("level", cfg.LogLevel))
		return nil
	})
	go func() {
		if err := gs.Start(); err != nil {
			app.logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
	app.server = gs
	return nil
}

func (a *appContext) close() {
	if a.logger != nil {
		a.logger.Debug("command finished", logging.Duration("elapsed", time.Since(a.start)))
	}
	if a.server != nil {
		_ = a.server.Shutdown(5 * time.Second)
	}
	if a.tp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tp.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Error("tracer shutdown failed", logging.Error(err))
		}
	}
}

// newEvaluator creates an evaluator sharing the process logger, metrics and
// tracer
func newEvaluator(lib *graph.Library, cfg config.Config) (*eval.Evaluator, error) {
	opts := []eval.Option{
		eval.WithConfig(cfg),
		eval.WithLogger(app.logger),
		eval.WithMetrics(app.metrics),
	}
	if app.tp != nil {
		opts = append(opts, eval.WithTracerProvider(app.tp))
	}
	return eval.New(lib, app.reg, opts...)
}
