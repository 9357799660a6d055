package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cdukcom/iot-platform-multitenant/internal/client"
	"github.com/cdukcom/iot-platform-multitenant/internal/config"
	"github.com/cdukcom/iot-platform-multitenant/internal/health"
	"github.com/cdukcom/iot-platform-multitenant/internal/metrics"
	"github.com/cdukcom/iot-platform-multitenant/internal/service"
	"github.com/cdukcom/iot-platform-multitenant/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting IoT provisioning coordinator")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.String("chirpstack_address", cfg.ChirpStack.Address),
		zap.Bool("isolate_templates", cfg.ChirpStack.IsolateTemplates))

	m := metrics.NewMetrics()

	// Document store
	ctx := context.Background()
	mongoStore, err := store.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document store", zap.Error(err))
	}
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure document store indexes", zap.Error(err))
	}
	logger.Info("Document store initialized")

	// Remote provisioning client, constructed once and shared for the
	// process lifetime.
	chirpstack, err := client.NewChirpStack(client.ChirpStackOptions{
		Address:     cfg.ChirpStack.Address,
		APIToken:    cfg.ChirpStack.APIToken,
		CallTimeout: cfg.ChirpStack.CallTimeout,
		PageSize:    cfg.ChirpStack.PageSize,
		ReadRetries: cfg.ChirpStack.ReadRetries,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize provisioning client", zap.Error(err))
	}
	logger.Info("Provisioning client initialized")

	// Template catalog: in-process binding by default, out-of-process
	// sidecar when the deployed stub sets are schema-incompatible.
	var catalog client.TemplateCatalog
	if cfg.ChirpStack.IsolateTemplates {
		catalog = client.NewSidecarCatalog(cfg.ChirpStack.SidecarProgram, cfg.ChirpStack.SidecarTimeout, logger)
		logger.Info("Template catalog isolated in sidecar",
			zap.String("program", cfg.ChirpStack.SidecarProgram))
	} else {
		catalog = client.NewInProcessCatalog(chirpstack, logger)
	}

	// Saga services. The request surface (HTTP routing, authentication)
	// lives in a separate layer that consumes this coordinator; this
	// process hosts it plus the metrics and health endpoints.
	coordinator := service.NewCoordinator(mongoStore, chirpstack, catalog, m, logger)
	_ = coordinator
	logger.Info("Provisioning sagas initialized")

	healthChecker := health.NewHealthChecker(mongoStore, chirpstack, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.LivenessHandler)
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics and health endpoints", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	if err := chirpstack.Close(); err != nil {
		logger.Warn("Provisioning client close failed", zap.Error(err))
	}
	if err := mongoStore.Close(shutdownCtx); err != nil {
		logger.Warn("Document store close failed", zap.Error(err))
	}

	logger.Info("Coordinator stopped")
}
