package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/resumecook/billing/internal/api"
	v1 "github.com/resumecook/billing/internal/api/v1"
	"github.com/resumecook/billing/internal/cache"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/integration/stripe"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/repository/postgres"
	"github.com/resumecook/billing/internal/service"
)

func main() {
	// Local development reads its environment from .env; in deployed
	// environments the file is absent and this is a no-op.
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	db, err := postgres.NewDB(cfg, logg)
	if err != nil {
		logg.Fatalw("failed to connect to postgres", "error", err)
	}

	params := service.ServiceParams{
		Logger:           logg,
		Config:           cfg,
		SubscriptionRepo: postgres.NewSubscriptionRepository(db, logg),
		LedgerRepo:       postgres.NewLedgerRepository(db, logg),
		Processor:        stripe.NewClient(cfg, logg),
		Cache:            cache.New(cfg, logg),
	}

	handlers := api.Handlers{
		Webhook: v1.NewWebhookHandler(
			stripe.NewWebhookVerifier(cfg),
			service.NewBillingService(params),
			cfg,
			logg,
		),
		Subscription: v1.NewSubscriptionHandler(
			service.NewSubscriptionService(params),
			logg,
		),
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(handlers, cfg, logg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logg.Infow("starting server", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalw("server error", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Errorw("graceful shutdown failed", "error", err)
	}
}
