package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ruko-pos/ruko-pos/internal/app"
	"github.com/ruko-pos/ruko-pos/internal/auth"
	"github.com/ruko-pos/ruko-pos/internal/cart"
	"github.com/ruko-pos/ruko-pos/internal/catalog"
	"github.com/ruko-pos/ruko-pos/internal/checkout"
	"github.com/ruko-pos/ruko-pos/internal/expense"
	"github.com/ruko-pos/ruko-pos/internal/ledger"
	"github.com/ruko-pos/ruko-pos/internal/observability"
	"github.com/ruko-pos/ruko-pos/internal/platform/cache"
	"github.com/ruko-pos/ruko-pos/internal/platform/db"
	"github.com/ruko-pos/ruko-pos/internal/reporting"
	"github.com/ruko-pos/ruko-pos/internal/shared"
	"github.com/ruko-pos/ruko-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService)

	catalogRepo := catalog.NewRepository(pool)
	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalogRepo, catalogCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	cartEngine := cart.NewEngine()
	cartHandler := cart.NewHandler(logger, cartEngine, catalogService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	cloudClient := jobs.NewCloudClient(cfg.SyncURL)
	syncGateway := jobs.NewSyncGateway(cloudClient, jobClient)

	checkoutRepo := checkout.NewRepository(pool)
	checkoutService := checkout.NewService(cartEngine, checkoutRepo, syncGateway, metrics, logger, checkout.ServiceConfig{
		StoreName:   cfg.StoreName,
		SyncTimeout: cfg.SyncTimeout,
	})
	idempotencyStore := shared.NewIdempotencyStore(pool)
	checkoutHandler := checkout.NewHandler(logger, checkoutService, idempotencyStore)
	checkoutService.RefreshSyncGauge(ctx)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	expenseRepo := expense.NewRepository(pool)
	expenseService := expense.NewService(expenseRepo, syncGateway, logger)
	expenseHandler := expense.NewHandler(logger, expenseService)

	reportingRepo := reporting.NewRepository(pool)
	reportingService := reporting.NewService(reportingRepo, expenseRepo, logger)
	reportingHandler := reporting.NewHandler(logger, reportingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		CartHandler:      cartHandler,
		CheckoutHandler:  checkoutHandler,
		LedgerHandler:    ledgerHandler,
		ExpenseHandler:   expenseHandler,
		ReportingHandler: reportingHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
