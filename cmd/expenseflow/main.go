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

	"github.com/expenseflow/expenseflow/internal/app"
	"github.com/expenseflow/expenseflow/internal/auth"
	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/expense"
	"github.com/expenseflow/expenseflow/internal/fx"
	"github.com/expenseflow/expenseflow/internal/platform/cache"
	"github.com/expenseflow/expenseflow/internal/platform/db"
	"github.com/expenseflow/expenseflow/internal/shared"
	"github.com/expenseflow/expenseflow/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	tokens := shared.NewTokenManager(redisClient, "expenseflow:token", cfg.TokenTTL)
	authMiddleware := shared.AuthMiddleware{Tokens: tokens, Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)

	fxClient := fx.NewClient(cfg.FXBaseURL, cfg.FXAPIKey, cfg.FXTimeout)
	rateCache := fx.NewRateCache(redisClient, cfg.FXRateTTL)
	converter := fx.NewConverter(fxClient, rateCache, logger)

	directoryRepo := directory.NewRepository(dbpool)
	directoryService := directory.NewService(directoryRepo)
	directoryHandler := directory.NewHandler(logger, directoryService, auth.BcryptHasher{}, authMiddleware)

	authService := auth.NewService(directoryService, tokens)
	authHandler := auth.NewHandler(logger, authService, authMiddleware)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("job queue close", slog.Any("error", err))
		}
	}()

	expenseRepo := expense.NewRepository(dbpool)
	expenseService := expense.NewService(expenseRepo, directoryService, converter, auditLogger, jobsClient)
	expenseHandler := expense.NewHandler(logger, expenseService, authMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		DirectoryHandler: directoryHandler,
		ExpenseHandler:   expenseHandler,
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
