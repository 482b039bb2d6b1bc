package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"

	"github.com/fleetpay/fleetpay/internal/app"
	jobmetrics "github.com/fleetpay/fleetpay/internal/jobs"
	"github.com/fleetpay/fleetpay/internal/payroll"
	"github.com/fleetpay/fleetpay/internal/platform/cache"
	"github.com/fleetpay/fleetpay/internal/platform/db"
	"github.com/fleetpay/fleetpay/internal/shared"
	"github.com/fleetpay/fleetpay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.Open(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, locker, err := cache.Connect(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, payroll locks disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	payrollService := payroll.NewService(payroll.NewRepository(pool), cfg.PayrollSettings(), logger)
	payrollService.WithLocker(locker)

	exportJob := jobs.NewPayrollExportJob(payrollService, payroll.NewExporter(language.English), cfg.ExportDir, logger, metrics)
	integrityJob := jobs.NewPayrollIntegrityJob(payrollService, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{Store: shared.NewIdempotencyStore(pool), Logger: logger, Metrics: metrics}

	integrityTask, err := jobs.NewPayrollIntegrityTask(jobs.DefaultIntegrityLookback)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.QueueRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPayrollExport, Handler: exportJob.Handle},
			{Type: jobs.TaskPayrollIntegrityScan, Handler: integrityJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityScanCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 4 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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
