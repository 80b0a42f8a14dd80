package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cashdash/cashdash-backend/internal/cron"
	"github.com/cashdash/cashdash-backend/internal/notifications"
	"github.com/cashdash/cashdash-backend/internal/orders"
	"github.com/cashdash/cashdash-backend/internal/refunds"
	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/db"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/metrics"
	"github.com/cashdash/cashdash-backend/pkg/migrate"
	"github.com/cashdash/cashdash-backend/pkg/outbox"
	"github.com/cashdash/cashdash-backend/pkg/redis"
	"github.com/cashdash/cashdash-backend/pkg/square"
)

const cronLockKey = "cron-worker:leader"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	var squareClient *square.Client
	if cfg.Square.AccessToken != "" {
		squareClient, err = square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create square client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "square access token missing, payout provider disabled")
	}

	refundsService, err := refunds.NewService(
		refunds.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		refunds.NewProviderFromConfig(cfg.Refunds, squareClient),
		logg,
		cfg.Refunds,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	otpExpiryJob, err := cron.NewOtpExpiryJob(cron.OtpExpiryJobParams{
		Logger:     logg,
		Repository: orders.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build otp expiry job", err)
		os.Exit(1)
	}

	refundRetryJob, err := cron.NewRefundRetryJob(cron.RefundRetryJobParams{
		Logger:  logg,
		Refunds: refundsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build refund retry job", err)
		os.Exit(1)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build outbox retention job", err)
		os.Exit(1)
	}

	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build notification cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cronLockKey, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger: logg,
		Registry: cron.NewRegistry(
			otpExpiryJob,
			refundRetryJob,
			outboxRetentionJob,
			notificationCleanupJob,
		),
		Lock:    lock,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
