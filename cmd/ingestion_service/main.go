package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rankedceo/crm-email/internal/emailingestion/app"
	"github.com/rankedceo/crm-email/internal/emailingestion/parse"
	ingestionpg "github.com/rankedceo/crm-email/internal/emailingestion/repository/postgres"
	"github.com/rankedceo/crm-email/internal/platform/config"
	"github.com/rankedceo/crm-email/internal/platform/database"
	"github.com/rankedceo/crm-email/internal/platform/logger"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const (
	serviceName     = "ingestion_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).With("service", serviceName)
	log.Info("Starting service")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	log.Info("NATS connection initialized")

	repo := ingestionpg.NewPgIngestionRepository(dbPool, log)
	pipeline := app.NewPipeline(
		parse.NewParser(cfg.InboundDomain),
		parse.DenylistSanitizer{},
		app.NewThreadResolver(repo, log),
		repo,
		natsClient,
		log,
	)
	consumer := app.NewConsumer(natsClient, pipeline, log)

	sub, err := consumer.Start(mainCtx)
	if err != nil {
		log.Error("Failed to start inbound email consumer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Drain() }()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.IngestionServiceMetricsPort),
		Handler: promhttp.Handler(),
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		log.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	log.Info("Service is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		log.Error("A critical component failed, initiating shutdown")
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Error during shutdown", "error", err)
	}
	log.Info("Service shutdown complete")
}
