package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/floorwatch/floorwatch/internal/api"
	"github.com/floorwatch/floorwatch/internal/application/service"
	"github.com/floorwatch/floorwatch/internal/infrastructure/config"
	"github.com/floorwatch/floorwatch/internal/infrastructure/logging"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
	"github.com/floorwatch/floorwatch/internal/observability"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		port       = flag.Int("port", 0, "Override the configured server port")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	svc, err := service.NewReconcileService(store, logger, metrics)
	if err != nil {
		logger.Error("Failed to initialize reconcile service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := api.NewServer(cfg.Server, svc, registry, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", slog.String("error", err.Error()))
		}
		close(done)
	}()

	if err := server.Start(); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	<-done
}
