package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/zenportal/backend/internal/billing"
	"github.com/zenportal/backend/internal/config"
	"github.com/zenportal/backend/internal/database"
	"github.com/zenportal/backend/internal/email"
	"github.com/zenportal/backend/internal/queue"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	sender := email.NewResendSender(cfg.Resend)
	billingSvc := billing.NewService(pool, billing.NewPayMongoClient(cfg.PayMongo), cfg.PayMongo, cfg.App.FrontendURL)
	taskHandlers := queue.NewHandlers(pool, sender, billingSvc, queueClient, cfg.App.FrontendURL)

	mux := asynq.NewServeMux()
	taskHandlers.Register(mux)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	scheduler := asynq.NewScheduler(redisOpt, nil)
	// Sunday morning recap fanout, host TZ.
	if _, err := scheduler.Register("0 8 * * 0", queue.NewRecapFanoutTask()); err != nil {
		slog.Error("failed to register recap schedule", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register("0 3 * * *", queue.NewExpireSubscriptionsTask()); err != nil {
		slog.Error("failed to register expiry schedule", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			slog.Error("scheduler stopped", "error", err)
		}
	}()

	slog.Info("worker starting", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
