package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-eam/atlas-eam/internal/notify"
)

// Worker wraps the Asynq server processing dispatch tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Notifier  notify.Notifier
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: cfg.Logger}
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeOtpDispatch, HandleOtpDispatchTask(notifier))
	mux.HandleFunc(TaskTypePasswordReset, HandlePasswordResetTask(notifier))
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}
}

// Run starts processing until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
