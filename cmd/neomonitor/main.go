package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dbehnke/neomonitor/internal/shell"
	"github.com/dbehnke/neomonitor/pkg/config"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/metrics"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("neomonitor %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	// Initialize logger (basic console logger for startup messages)
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	log.Info("Starting neomonitor",
		logger.String("version", version),
		logger.String("commit", gitCommit),
		logger.String("build_time", buildTime))

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log.Info("Configuration loaded successfully",
		logger.String("config_file", *configFile))

	// Reinitialize logger with config from file
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Debug("Debug logging enabled")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Build the monitor: storage, acquisition, DSP/aEEG state, and the
	// web dashboard are all assembled here.
	monitor, err := shell.New(cfg, log.WithComponent("monitor"))
	if err != nil {
		log.Error("Failed to initialize monitor", logger.Error(err))
		os.Exit(1)
	}

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				monitor.Metrics(),
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	// Start the web dashboard if enabled
	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitor.WebServer().Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	// Start acquisition, storage, and the reaper; blocks until ctx is
	// cancelled, then joins its own goroutines before returning.
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()

	log.Info("neomonitor initialized")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	// Cancel context to trigger graceful shutdown
	cancel()

	// Wait for all components to stop
	wg.Wait()

	if err := monitor.Close(); err != nil {
		log.Error("Error closing monitor", logger.Error(err))
	}

	log.Info("neomonitor stopped")
}
