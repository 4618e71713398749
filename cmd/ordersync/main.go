package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordersync/internal/config"
	"ordersync/internal/database"
	"ordersync/internal/handler"
	"ordersync/internal/metrics"
	"ordersync/internal/mw"
	"ordersync/internal/service"
	"ordersync/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	metrics.RegisterDefault()

	// Services
	orderSvc := service.NewOrderService(db)
	confirmationSvc := service.NewConfirmationService(db)
	auditSvc := service.NewAuditService(db)
	webhookConfigSvc := service.NewWebhookConfigService(db)
	apiConfigSvc := service.NewAPIConfigService(db)
	shippingSvc := service.NewShippingService(orderSvc)
	syncSvc := service.NewSyncService(apiConfigSvc, orderSvc, confirmationSvc, service.NewFetcherForStore)

	// Worker
	syncWorker := worker.NewSyncWorker(syncSvc, cfg.SyncInterval)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Webhook endpoints, authenticated by their own signature scheme
	r.Get("/webhooks/ecomanager", handler.OrderWebhookValidationHandler())
	r.Post("/webhooks/ecomanager", handler.OrderWebhookHandler(webhookConfigSvc, confirmationSvc, auditSvc))
	r.Post("/webhooks/shipping", handler.ShippingWebhookHandler(shippingSvc, auditSvc))

	r.Get("/health", handler.HealthHandler(db))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Management API
	r.Group(func(r chi.Router) {
		r.Use(mw.AdminAuthMiddleware(cfg.JWTSecret))

		r.Post("/api/sync", handler.TriggerSyncHandler(syncSvc))
		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc))
		r.Get("/api/orders/{externalID}", handler.GetOrderHandler(orderSvc, confirmationSvc))
		r.Post("/api/webhook-events/{id}/retry", handler.RetryWebhookEventHandler(auditSvc, shippingSvc, confirmationSvc))
		r.Get("/api/webhook-events/stats", handler.WebhookStatsHandler(auditSvc))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go syncWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
