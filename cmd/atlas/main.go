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
	"golang.org/x/sync/errgroup"

	"github.com/atlas-eam/atlas-eam/internal/app"
	"github.com/atlas-eam/atlas-eam/internal/auth"
	"github.com/atlas-eam/atlas-eam/internal/identity"
	"github.com/atlas-eam/atlas-eam/internal/observability"
	"github.com/atlas-eam/atlas-eam/internal/otp"
	"github.com/atlas-eam/atlas-eam/internal/platform/cache"
	"github.com/atlas-eam/atlas-eam/internal/platform/db"
	"github.com/atlas-eam/atlas-eam/internal/rbac"
	"github.com/atlas-eam/atlas-eam/internal/token"
	"github.com/atlas-eam/atlas-eam/jobs"
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

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo)
	resolver := rbac.NewResolver(identityRepo)

	tokenService, err := token.NewService(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}

	var otpStore otp.Store = otp.NewMemoryStore()
	if cfg.OtpStore == "redis" {
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
		otpStore = otp.NewRedisStore(redisClient)
	}
	otpService := otp.NewService(identityService, otpStore, logger, cfg.OtpTTL, cfg.OtpResendWindow)

	dispatcher := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("dispatcher close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	authService := auth.NewService(identityRepo, otpService, tokenService, resolver, dispatcher, logger)
	authHandler := auth.NewHandler(logger, authService, metrics)
	identityHandler := identity.NewHandler(logger, identityService, resolver)
	gate := rbac.Middleware{Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Tokens:          tokenService,
		Expander:        resolver,
		AuthHandler:     authHandler,
		IdentityHandler: identityHandler,
		Gate:            gate,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
