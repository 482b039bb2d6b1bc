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
	"golang.org/x/text/language"

	"github.com/fleetpay/fleetpay/internal/app"
	"github.com/fleetpay/fleetpay/internal/fleet"
	"github.com/fleetpay/fleetpay/internal/observability"
	"github.com/fleetpay/fleetpay/internal/payroll"
	"github.com/fleetpay/fleetpay/internal/platform/cache"
	"github.com/fleetpay/fleetpay/internal/platform/db"
	"github.com/fleetpay/fleetpay/internal/shared"
	"github.com/fleetpay/fleetpay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.Open(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	fleetRepo := fleet.NewRepository(dbpool)
	fleetService := fleet.NewService(fleetRepo, logger)
	fleetHandler := fleet.NewHandler(logger, fleetService)

	payrollRepo := payroll.NewRepository(dbpool)
	payrollService := payroll.NewService(payrollRepo, cfg.PayrollSettings(), logger)
	payrollService.WithLocker(locker)
	payrollService.WithIdempotency(shared.NewIdempotencyStore(dbpool))
	payrollService.WithAudit(shared.NewAuditLogger(dbpool))
	payrollService.WithMetrics(payroll.NewMetrics(metrics.Registerer()))

	jobClient, err := jobs.NewClient(cfg.QueueRedis())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	payrollHandler := payroll.NewHandler(logger, payrollService, payroll.NewExporter(language.English), jobClient)

	inspector := asynq.NewInspector(cfg.QueueRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		FleetHandler:   fleetHandler,
		PayrollHandler: payrollHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
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
