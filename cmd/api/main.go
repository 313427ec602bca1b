package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/zenportal/backend/internal/api"
	"github.com/zenportal/backend/internal/api/handlers"
	apimw "github.com/zenportal/backend/internal/api/middleware"
	"github.com/zenportal/backend/internal/auth"
	"github.com/zenportal/backend/internal/billing"
	"github.com/zenportal/backend/internal/cache"
	"github.com/zenportal/backend/internal/client"
	"github.com/zenportal/backend/internal/config"
	"github.com/zenportal/backend/internal/database"
	"github.com/zenportal/backend/internal/queue"
	"github.com/zenportal/backend/internal/stats"
	"github.com/zenportal/backend/internal/tenant"
	"github.com/zenportal/backend/internal/tier"
	"github.com/zenportal/backend/internal/worklog"
	"github.com/zenportal/backend/migrations"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.Files); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Cache and queue degrade gracefully; startup proceeds.
		slog.Warn("redis unreachable at startup", "error", err)
	}
	cacheStore := cache.NewCache(rdb)

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	authSvc := auth.NewService(pool, cfg.Auth)
	tenantSvc := tenant.NewService(pool)
	clientSvc := client.NewService(pool)
	worklogSvc := worklog.NewService(pool)
	statsSvc := stats.NewService(pool)
	usage := tier.NewUsageStore(pool)
	gate := tier.NewGate(usage)
	paymongo := billing.NewPayMongoClient(cfg.PayMongo)
	billingSvc := billing.NewService(pool, paymongo, cfg.PayMongo, cfg.App.FrontendURL)

	resolver := tenant.NewResolver(tenantSvc)
	sessionMW := auth.NewSessionMiddleware(cfg.Auth.JWTSecret, cfg.Auth.CookieName, authSvc, cacheStore, resolver)
	apiKeyMW := auth.NewAPIKeyMiddleware(tenantSvc, cacheStore)
	rateLimiter := apimw.NewRateLimiter(cacheStore, cfg.RateLimit)

	secureCookies := strings.HasPrefix(cfg.App.FrontendURL, "https://")

	router := api.NewRouter(api.Deps{
		Config:       cfg,
		SessionMW:    sessionMW,
		APIKeyMW:     apiKeyMW,
		RateLimit:    rateLimiter,
		Health:       handlers.NewHealthHandler(pool, rdb),
		Auth:         handlers.NewAuthHandler(authSvc, cfg.Auth.CookieName, cfg.Auth.SessionTTLDays, secureCookies),
		Users:        handlers.NewUserHandler(authSvc),
		Workspaces:   handlers.NewWorkspaceHandler(tenantSvc, gate),
		Clients:      handlers.NewClientHandler(clientSvc, gate),
		Logs:         handlers.NewLogHandler(worklogSvc, gate, queueClient),
		Stats:        handlers.NewStatsHandler(statsSvc, usage, gate),
		Billing:      handlers.NewBillingHandler(billingSvc),
		Webhooks:     handlers.NewWebhookHandler(billingSvc, queueClient, cfg.PayMongo),
		Public:       handlers.NewPublicHandler(clientSvc, worklogSvc, tenantSvc, queueClient),
		Programmatic: handlers.NewProgrammaticHandler(worklogSvc, tenantSvc, gate, queueClient),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
