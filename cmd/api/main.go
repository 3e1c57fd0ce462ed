package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/rentaplace/notifier/internal/config"
	"github.com/rentaplace/notifier/internal/handler"
	"github.com/rentaplace/notifier/internal/infra/postgresql"
	"github.com/rentaplace/notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/rentaplace/notifier/internal/infra/redis"
	"github.com/rentaplace/notifier/internal/mailer"
	"github.com/rentaplace/notifier/internal/observability"
	"github.com/rentaplace/notifier/internal/repository"
	"github.com/rentaplace/notifier/internal/service"
	"github.com/rentaplace/notifier/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("notifier exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewSendRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	mailTransport, err := mailer.NewTransport(mailer.FactoryConfig{
		Driver: cfg.MailerDriver,
		SMTP: mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		MailAPIURL: cfg.MailAPIURL,
	})
	if err != nil {
		return fmt.Errorf("mail transport initialization failed: %w", err)
	}

	notificationRepo := repository.NewGormNotificationRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	notificationService, err := service.NewNotificationService(notificationRepo, attemptRepo, logger)
	if err != nil {
		return err
	}

	engine, err := service.NewDeliveryEngine(
		notificationRepo,
		attemptRepo,
		mailTransport,
		rateLimiter,
		cfg.MaxRetries,
		time.Duration(cfg.SendTimeoutSec)*time.Second,
		cfg.EngineConcurrency,
		logger,
	)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	engine.SetMetrics(metrics)

	poller, err := service.NewPoller(
		engine,
		time.Duration(cfg.PollIntervalSec)*time.Second,
		cfg.PollBatchLimit,
		logger,
	)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterNotificationRoutes(app, notificationService, engine); err != nil {
		return err
	}

	pollerDone := make(chan error, 1)
	go func() {
		pollerDone <- poller.Start(ctx)
	}()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("notifier api started",
		zap.Int("port", cfg.APIPort),
		zap.String("mailerDriver", mailTransport.Driver()),
	)

	select {
	case err := <-listenErr:
		stop()
		<-pollerDone
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	<-pollerDone

	return nil
}
