package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpile-erp/stockpile-erp/internal/app"
	"github.com/stockpile-erp/stockpile-erp/internal/catalog"
	"github.com/stockpile-erp/stockpile-erp/internal/notifications"
	"github.com/stockpile-erp/stockpile-erp/internal/observability"
	"github.com/stockpile-erp/stockpile-erp/internal/platform/cache"
	"github.com/stockpile-erp/stockpile-erp/internal/platform/db"
	"github.com/stockpile-erp/stockpile-erp/internal/shared"
	"github.com/stockpile-erp/stockpile-erp/internal/stock"
	"github.com/stockpile-erp/stockpile-erp/internal/users"
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	dispatcher := notifications.NewDispatcher(asynqClient, logger)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, dispatcher, metrics, logger)
	stockHandler := stock.NewHandler(logger, stockService)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, dispatcher, auditLogger, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	notificationsRepo := notifications.NewRepository(pool)
	notificationsService := notifications.NewService(logger, notificationsRepo, usersService, redisClient, asynqClient)
	notificationsHandler := notifications.NewHandler(logger, notificationsService)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		CatalogHandler:       catalogHandler,
		StockHandler:         stockHandler,
		NotificationsHandler: notificationsHandler,
		UsersHandler:         usersHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
