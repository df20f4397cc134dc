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

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	campaignpg "github.com/rankedceo/crm-email/internal/campaign/repository/postgres"
	apihttp "github.com/rankedceo/crm-email/internal/emailapi/transport/http"
	ingestionpg "github.com/rankedceo/crm-email/internal/emailingestion/repository/postgres"
	"github.com/rankedceo/crm-email/internal/platform/config"
	"github.com/rankedceo/crm-email/internal/platform/database"
	"github.com/rankedceo/crm-email/internal/platform/logger"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const (
	serviceName     = "email_api_service"
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

	validate := validator.New()
	ingestionRepo := ingestionpg.NewPgIngestionRepository(dbPool, log)
	campaignRepo := campaignpg.NewPgCampaignRepository(dbPool, log)
	campaignEmailRepo := campaignpg.NewPgCampaignEmailRepository(dbPool, log)

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Inbound:  apihttp.NewInboundEmailHandler(natsClient, log),
		Events:   apihttp.NewEventWebhookHandler(natsClient, log, validate, cfg.WebhookSigningKey),
		Campaign: apihttp.NewCampaignHandler(campaignRepo, campaignEmailRepo, natsClient, log),
		Mailbox:  apihttp.NewMailboxHandler(ingestionRepo, log),
	})

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.EmailAPIServicePort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.EmailAPIServiceMetricsPort),
		Handler: promhttp.Handler(),
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("API server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
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
		_ = metricsServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
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
