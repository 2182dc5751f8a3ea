// Package main is the entry point for the routegate gateway.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/gateway"
	"github.com/avelsk/routegate/internal/health"
	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)

	cfg := loadAndValidateConfig(flags.configPath, logger)
	if flags.logLevel == "" && flags.logFormat == "" {
		logger = reinitLogger(cfg, logger)
	}

	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("ROUTEGATE_CONFIG_PATH", "configs/routegate.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", os.Getenv("ROUTEGATE_LOG_LEVEL"),
		"Log level (debug, info, warn, error); overrides the configuration file")
	logFormat := flag.String("log-format", os.Getenv("ROUTEGATE_LOG_FORMAT"),
		"Log format (json, console); overrides the configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("routegate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// initLogger initializes the logger from flags, before the configuration
// is available.
func initLogger(flags cliFlags) observability.Logger {
	cfg := observability.DefaultLogConfig()
	if flags.logLevel != "" {
		cfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// reinitLogger rebuilds the logger with the settings from the loaded
// configuration when no flag overrode them.
func reinitLogger(cfg *config.GatewayConfig, fallback observability.Logger) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fallback.Warn("invalid log settings in configuration, keeping defaults",
			observability.Error(err),
		)
		return fallback
	}
	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration, exiting on
// failure.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting routegate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", observability.Error(err))
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", observability.Error(err))
		os.Exit(1)
	}
	return cfg
}

// initTracer initializes the tracer, falling back to a no-op tracer when
// the exporter cannot be created.
func initTracer(cfg *config.GatewayConfig, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SampleRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, tracing disabled",
			observability.Error(err),
		)
		tracer, _ = observability.NewTracer(observability.TracerConfig{
			ServiceName: cfg.Tracing.ServiceName,
		})
	}
	return tracer
}

// run assembles the gateway, starts serving, and blocks until shutdown.
func run(cfg *config.GatewayConfig, configPath string, logger observability.Logger) {
	tracer := initTracer(cfg, logger)

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithTracer(tracer),
	)
	if err != nil {
		logger.Error("failed to build gateway", observability.Error(err))
		os.Exit(1)
	}
	defer func() { _ = gw.Close() }()

	checker := health.NewChecker(version)
	checker.Register("routes", func() health.Check {
		if len(gw.Router().Routes()) == 0 {
			return health.Check{Status: health.StatusDegraded, Message: "route table is empty"}
		}
		return health.Check{Status: health.StatusUp}
	})

	srvOpts := []server.Option{server.WithHealthChecker(checker)}
	if cfg.Server.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			logger.Error("failed to load TLS key pair", observability.Error(err))
			os.Exit(1)
		}
		srvOpts = append(srvOpts, server.WithTLSConfig(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}

	srv := server.New(cfg.Server, gw.Router(), logger, srvOpts...)
	serveErr, err := srv.Start()
	if err != nil {
		logger.Error("failed to start server", observability.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := startWatcher(ctx, configPath, gw, logger)
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down",
			observability.String("signal", sig.String()),
		)
	case err := <-serveErr:
		logger.Error("server failed", observability.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", observability.Error(err))
	}

	logger.Info("routegate stopped")
}

// startWatcher begins watching the configuration file for changes,
// applying valid updates to the running gateway. Watch setup failure is
// not fatal: the gateway keeps serving its initial configuration.
func startWatcher(ctx context.Context, configPath string, gw *gateway.Gateway, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath,
		func(next *config.GatewayConfig) {
			if err := gw.Apply(next); err != nil {
				logger.Error("failed to apply reloaded configuration",
					observability.Error(err),
				)
			}
		},
		config.WithWatcherLogger(logger),
		config.WithErrorCallback(func(err error) {
			logger.Error("configuration reload error", observability.Error(err))
		}),
	)
	if err == nil {
		err = watcher.Start(ctx)
	}
	if err != nil {
		logger.Warn("configuration watching disabled", observability.Error(err))
		return nil
	}
	return watcher
}
