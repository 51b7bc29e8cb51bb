package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ruko-pos/ruko-pos/internal/app"
	"github.com/ruko-pos/ruko-pos/internal/checkout"
	"github.com/ruko-pos/ruko-pos/internal/expense"
	"github.com/ruko-pos/ruko-pos/internal/platform/db"
	"github.com/ruko-pos/ruko-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	checkoutRepo := checkout.NewRepository(pool)
	expenseRepo := expense.NewRepository(pool)

	txSyncJob := jobs.NewTransactionSyncJob(checkoutRepo, cloudClient, logger)
	expenseSyncJob := jobs.NewExpenseSyncJob(expenseRepo, cloudClient, logger)
	sweepJob := jobs.NewSyncSweepJob(checkoutRepo, jobClient, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSyncTransaction, Handler: txSyncJob.Handle},
			{Type: jobs.TaskTypeSyncExpense, Handler: expenseSyncJob.Handle},
			{Type: jobs.TaskTypeSyncSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewSyncSweepTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
