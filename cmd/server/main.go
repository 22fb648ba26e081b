package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/GymLedgerService/internal/api"
	"github.com/honeynil/GymLedgerService/internal/config"
	"github.com/honeynil/GymLedgerService/internal/handler"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/kafka"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/notify"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/ratelimit"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/tinkoff"
	"github.com/honeynil/GymLedgerService/internal/observability"
	core "github.com/honeynil/GymLedgerService/internal/repository/postgres"
	service "github.com/honeynil/GymLedgerService/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем логи, метрики, трейсы
	shutdownTracing, metricsHandler := observability.Setup("gym-ledger-service", cfg.LogLevel, cfg.OTLPEndpoint)
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключаемся к Postgres
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if cfg.AutoMigrate {
		if err := core.ApplyMigrations(ctx, db); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		os.Exit(1)
	}
	defer redisClient.Close()

	// Уведомления: producer пишет в топик, consumer доставляет пользователю
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.NotificationsTopic)
	defer producer.Close()

	var deliverer kafka.Deliverer
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramDeliverer(cfg.TelegramBotToken)
		if err != nil {
			slog.Error("failed to init telegram bot", "error", err)
			os.Exit(1)
		}
		deliverer = tg
	} else {
		deliverer = notify.NewHookDeliverer(cfg.NotifyHookURL)
	}
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.NotificationsTopic, cfg.NotificationsGroup, deliverer)
	defer consumer.Close()
	go consumer.Consume(ctx)

	gateway := tinkoff.NewClient(tinkoff.Config{
		TerminalKey:     cfg.TinkoffTerminalKey,
		Password:        cfg.TinkoffPassword,
		NotificationURL: cfg.TinkoffNotificationURL,
		APIURL:          cfg.TinkoffAPIURL,
	})

	userRepo := core.NewPostgresUserRepository(db)
	ledgerRepo := core.NewPostgresLedgerRepository(db)
	subRepo := core.NewPostgresSubscriptionRepository(db)
	goodsRepo := core.NewPostgresGoodsRepository(db)
	orderRepo := core.NewPostgresOrderRepository(db)
	calendarRepo := core.NewPostgresCalendarRepository(db)
	trainerRepo := core.NewPostgresTrainerRepository(db)

	h := handler.NewHandler(
		service.NewUserService(userRepo),
		service.NewBalanceService(userRepo, ledgerRepo),
		service.NewSubscriptionService(userRepo, ledgerRepo, subRepo, redisClient, cfg.RequestKeyTTL),
		service.NewGoodsService(userRepo, goodsRepo, redisClient, cfg.RequestKeyTTL),
		service.NewPaymentService(userRepo, orderRepo, gateway, producer),
		service.NewCalendarService(userRepo, calendarRepo),
		service.NewTrainerService(userRepo, trainerRepo),
	)

	limiter := ratelimit.New(redisClient, ratelimit.Config{
		Window:         cfg.RateLimitWindow,
		SlowDownWindow: cfg.SlowDownWindow,
		SlowDownDelay:  cfg.SlowDownDelay,
	})
	router := api.SetupRouter(h, api.Options{
		Limiter:        limiter.Middleware,
		MetricsHandler: metricsHandler,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
