package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-leadbot/internal/api/router"
	"github.com/wolfman30/whatsapp-leadbot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/whatsapp-leadbot/internal/config"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/internal/http/handlers"
	"github.com/wolfman30/whatsapp-leadbot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp lead bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	dbs, err := bootstrap.OpenDatabases(ctx, cfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer dbs.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	email, err := bootstrap.BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("email sender setup failed", "error", err)
		os.Exit(1)
	}

	metricsHandler, botMetrics := setupMetrics()
	bot, err := bootstrap.BuildBot(cfg, bootstrap.BotDeps{
		Pool:    dbs.Pool,
		SQL:     dbs.SQL,
		Redis:   redisClient,
		Email:   email,
		Metrics: botMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to wire bot", "error", err)
		os.Exit(1)
	}

	// Warm the catalog so the first message does not pay for the load.
	if err := bot.Detector.Refresh(ctx); err != nil {
		logger.Warn("intent catalog warmup failed", "error", err)
	}

	admin := handlers.NewAdminHandler(handlers.AdminDeps{
		Catalog:      bot.Detector,
		Sessions:     bot.Sessions,
		Appointments: bot.Appointments,
		Advisors:     bot.Advisors,
		History:      historyOrNil(bot.ConversationLog),
	}, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		WhatsApp:        bot.Adapter,
		Conversation:    conversation.NewHandler(bot.Processor, logger),
		Admin:           admin,
		AdminAuthSecret: cfg.AdminJWTSecret,
		TestToken:       cfg.TestEndpointToken,
		MetricsHandler:  metricsHandler,
		HealthChecks:    healthChecks(dbs, redisClient),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// setupMetrics registers bot metrics plus runtime collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.BotMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), botMetrics
}

func healthChecks(dbs *bootstrap.Databases, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if dbs != nil && dbs.Pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return dbs.Pool.Ping(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

// historyOrNil keeps a disabled conversation log from mounting its route.
func historyOrNil(store *conversation.LogStore) handlers.ConversationHistory {
	if store == nil {
		return nil
	}
	return store
}
