package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlas-eam/atlas-eam/internal/app"
	"github.com/atlas-eam/atlas-eam/internal/notify"
	"github.com/atlas-eam/atlas-eam/jobs"
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

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Notifier:  notify.LogNotifier{Logger: logger},
	})

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
