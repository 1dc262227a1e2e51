package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"battle-arena/config"
	"battle-arena/handlers"
	"battle-arena/metrics"
	"battle-arena/middleware"
	"battle-arena/models"
	"battle-arena/services"
	"battle-arena/utils"
	"battle-arena/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.TournamentRegistration{},
		&models.TournamentResult{},
		&models.Transaction{},
		&models.WithdrawalRequest{},
		&models.PaymentOrder{},
	); err != nil {
		log.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var sink services.Notifier = services.LogNotifier{Logger: log}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		sink = services.NewRedisNotifier(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, notifications are only logged")
	}
	notifier := services.NewAsyncNotifier(sink, services.DefaultNotifyTimeout, log, m)

	var reports services.ReportStore
	if cfg.R2Enabled() {
		store, err := utils.NewR2Store(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Error("failed to initialize R2 client", slog.Any("error", err))
			os.Exit(1)
		}
		reports = store
	} else {
		log.Warn("R2 not configured, settlement reports are not archived")
	}

	registrations := services.NewRegistrationService(db, log, m)
	h := &handlers.Handler{
		Tournaments:   services.NewTournamentService(db, log, m, notifier),
		Registrations: registrations,
		Settlements:   services.NewSettlementService(db, log, m, notifier, reports),
		Withdrawals:   services.NewWithdrawalService(db, log, m),
		Payments: services.NewPaymentService(db, log, m,
			services.NewGatewayClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret),
			registrations, cfg.PaymentWebhookSecret),
		Users:  services.NewUserService(db, log),
		Logger: log,
	}

	reminders := services.NewReminderService(db, log, notifier, cfg.ReminderWindow)
	sched, err := reminders.StartScheduler(ctx)
	if err != nil {
		log.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	go workers.PollPayments(ctx, h.Payments, log, time.Minute, cfg.PaymentGrace)
	if cfg.ProfileSyncURL != "" {
		syncWorker := workers.NewProfileSyncWorker(db, log, cfg.ProfileSyncURL, "/api/v1/public/profiles", cfg.ProfileSyncToken)
		go syncWorker.Run(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      "battle-arena",
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       86400,
	}))
	app.Get("/metrics",
		middleware.ServiceTokenMiddleware(cfg.MetricsToken),
		adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)

	h.SetupRoutes(app, handlers.RouteConfig{
		Verifier:    middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		RateLimiter: middleware.DefaultRateLimiter(),
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", slog.Any("error", err))
			stop()
		}
	}()
	log.Info("server running",
		slog.String("port", cfg.Port),
		slog.String("env", cfg.Env),
		slog.Any("cors_origins", cfg.AllowedOrigins),
	)

	<-ctx.Done()
	log.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	if err := sched.Shutdown(); err != nil {
		log.Error("scheduler shutdown failed", slog.Any("error", err))
	}
	notifier.Wait()
	log.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
