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

	"github.com/noodle-soup/noodle/internal/app"
	"github.com/noodle-soup/noodle/internal/auth"
	"github.com/noodle-soup/noodle/internal/observability"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/jobs"
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

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, logger, cfg, os.Args[1:]))
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	authService := auth.NewService(auth.NewRepository(pool), nil)
	cleanup := jobs.NewSessionCleanupJob(authService, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   jobs.RedisOpt(cfg.RedisAddr),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionCleanup, Handler: cleanup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionCleanupCron, Task: jobs.NewSessionCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1), asynq.Unique(time.Minute)}},
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

// runCommand handles `worker trigger <task>` and `worker stats`.
func runCommand(ctx context.Context, logger *slog.Logger, cfg *app.Config, args []string) int {
	cli := newJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := cli.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch {
	case args[0] == "trigger" && len(args) == 2:
		info, err := cli.Trigger(ctx, args[1])
		if err != nil {
			logger.Error("trigger job", slog.Any("error", err))
			return 1
		}
		logger.Info("job enqueued", slog.String("task", info.Type), slog.String("id", info.ID))
	case args[0] == "stats":
		stats, err := cli.InspectQueue()
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			return 1
		}
		stats.write(os.Stdout)
	default:
		logger.Error("usage: worker [trigger session:cleanup | stats]")
		return 2
	}
	return 0
}
