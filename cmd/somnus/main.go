package main

// @title Somnus API
// @version 1.0
// @description Sleep analysis pipeline with per-user two-tier memory
// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/somnus/somnus/config"
	"github.com/somnus/somnus/pkg/api"
	"github.com/somnus/somnus/pkg/api/handlers"
	"github.com/somnus/somnus/pkg/engine"
	"github.com/somnus/somnus/pkg/events"
	"github.com/somnus/somnus/pkg/logger"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/memory/backend"
	badgerstore "github.com/somnus/somnus/pkg/memory/backend/badger"
	"github.com/somnus/somnus/pkg/memory/backend/inmem"
	redisstore "github.com/somnus/somnus/pkg/memory/backend/redis"
	"github.com/somnus/somnus/pkg/metrics"
	"github.com/somnus/somnus/pkg/telemetry/tracing"
	"github.com/somnus/somnus/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	serverPort  = flag.Int("port", 0, "Override server port")
	logLevel    = flag.String("log-level", "", "Override log level")
	storageType = flag.String("storage", "", "Override storage backend (memory, badger, redis)")
	debugMode   = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Somnus",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Tracing is process-wide and must come up before the engine.
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Memory backend
	var be backend.Backend
	switch cfg.Storage.Type {
	case "badger":
		be, err = badgerstore.New(&badgerstore.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		})
		if err != nil {
			log.Error("Failed to open Badger store", "error", err, "path", cfg.Storage.Badger.Path)
			os.Exit(1)
		}
		log.Info("Initialized Badger storage", "path", cfg.Storage.Badger.Path)
	case "redis":
		be, err = redisstore.New(ctx, &redisstore.Config{
			Addr:      cfg.Storage.Redis.Address,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err, "addr", cfg.Storage.Redis.Address)
			os.Exit(1)
		}
		log.Info("Initialized Redis storage", "addr", cfg.Storage.Redis.Address)
	case "memory":
		be = inmem.New()
		log.Info("Initialized in-memory storage")
	default:
		be = inmem.New()
		log.Warn("Unknown storage type, using in-memory storage", "type", cfg.Storage.Type)
	}

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Memory store with background eviction sweep
	memCfg := &memory.Config{
		STMRetention:   cfg.Memory.STMRetention,
		LTMRetention:   cfg.Memory.LTMRetention,
		STMMaxSessions: cfg.Memory.STMMaxSessions,
		OpTimeout:      cfg.Memory.OpTimeout,
		RetryBackoff:   cfg.Memory.RetryBackoff,
		SweepInterval:  cfg.Memory.SweepInterval,
	}
	store := memory.New(be, memCfg,
		memory.WithLogger(log),
		memory.WithRecorder(metricsManager),
	)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing memory store", "error", err)
		}
	}()
	stopSweeper := store.StartSweeper(ctx)
	defer stopSweeper()

	// Pipeline engine and its event bus
	bus := events.NewBus(cfg.Engine.EventBuffer)
	eng := engine.New(store,
		engine.WithLogger(log),
		engine.WithMetrics(metricsManager),
		engine.WithEvents(bus),
		engine.WithMaxBatchSize(cfg.Engine.MaxBatchSize),
	)

	// HTTP API
	apiHandlers := &api.Handlers{
		Task:   handlers.NewTaskHandler(eng, log),
		Memory: handlers.NewMemoryHandler(store, log),
		Health: handlers.NewHealthHandler(store, cfg.Storage.Type),
		Events: handlers.NewEventsHandler(bus, log, handlers.EventsConfig{
			AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		}),
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Hot reload for log level and format when a config file is in use
	var watcher *config.Watcher
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watcher disabled", "error", err)
		} else {
			current := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(next *config.Config) {
				reloaded := config.ExtractHotReloadable(next)
				if !current.Changed(reloaded) {
					return
				}
				if reloaded.LogLevel != current.LogLevel {
					log.SetLevel(logger.ParseLevel(reloaded.LogLevel))
					log.Info("Log level reloaded", "level", reloaded.LogLevel)
				}
				current = reloaded
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && err != context.Canceled {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
		}
	}

	log.Info("Somnus is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
	)

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Somnus stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *storageType != "" {
		overrides["storage.type"] = *storageType
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Somnus - Sleep Analysis Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Somnus - Sleep analysis pipeline with per-user two-tier memory\n\n")
	fmt.Printf("Usage: somnus [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  somnus                                    # Run with default config\n")
	fmt.Printf("  somnus -config config.yaml                # Use specific config file\n")
	fmt.Printf("  somnus -port 9090 -log-level debug        # Override specific options\n")
	fmt.Printf("  somnus -storage memory                    # Run without persistence\n")
	fmt.Printf("  somnus -version                           # Print version info\n")
}
