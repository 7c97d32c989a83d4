package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stockpile-erp/stockpile-erp/internal/app"
	jobmetrics "github.com/stockpile-erp/stockpile-erp/internal/jobs"
	"github.com/stockpile-erp/stockpile-erp/internal/notifications"
	"github.com/stockpile-erp/stockpile-erp/internal/observability"
	"github.com/stockpile-erp/stockpile-erp/internal/platform/cache"
	"github.com/stockpile-erp/stockpile-erp/internal/platform/db"
	"github.com/stockpile-erp/stockpile-erp/internal/platform/mail"
	"github.com/stockpile-erp/stockpile-erp/internal/shared"
	"github.com/stockpile-erp/stockpile-erp/internal/users"
	"github.com/stockpile-erp/stockpile-erp/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	mailer, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	if err != nil {
		logger.Error("init mail sender", slog.Any("error", err))
		os.Exit(1)
	}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	notificationsRepo := notifications.NewRepository(pool)
	notificationsService := notifications.NewService(logger, notificationsRepo, usersService, redisClient, asynqClient)

	purgeTask, err := jobs.NewNotificationsPurgeTask(cfg.NotificationRetention)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewIdempotencySweepTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			logger.Warn("metrics shutdown", slog.Any("error", err))
		}
	}()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   jobmetrics.NewMetrics(metrics.Registerer()),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(mailer)},
			{Type: jobs.TaskTypeThresholdAlert, Handler: jobs.NewThresholdAlertHandler(notificationsService)},
			{Type: jobs.TaskTypeNotificationsPurge, Handler: jobs.NewNotificationsPurgeHandler(notificationsService)},
			{Type: jobs.TaskTypeIdempotencySweep, Handler: jobs.NewIdempotencySweepHandler(idempotencyStore)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
