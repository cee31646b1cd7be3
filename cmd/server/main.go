package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"

	"github.com/ignatzorin/campus-trade/internal/config"
	"github.com/ignatzorin/campus-trade/internal/db"
	"github.com/ignatzorin/campus-trade/internal/goroutine"
	httpHandlers "github.com/ignatzorin/campus-trade/internal/http/handlers"
	httpRouter "github.com/ignatzorin/campus-trade/internal/http/router"
	"github.com/ignatzorin/campus-trade/internal/lock"
	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/retry"
	"github.com/ignatzorin/campus-trade/internal/service"
	"github.com/ignatzorin/campus-trade/internal/txn"
	"github.com/ignatzorin/campus-trade/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(dbConn); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	tokens := service.NewTokenVerifier(cfg.JWTSecret)

	// Репозитории.
	txManager := repository.NewTxManager(dbConn)
	reader := txManager.Conn()
	userRepo := repository.NewUserRepository()
	listingRepo := repository.NewListingRepository()
	orderRepo := repository.NewOrderRepository()
	historyRepo := repository.NewOrderHistoryRepository()
	negotiationRepo := repository.NewNegotiationRepository()
	ledgerRepo := repository.NewLedgerRepository()
	creditRepo := repository.NewCreditRepository()
	rechargeRepo := repository.NewRechargeRepository()
	reviewRepo := repository.NewReviewRepository()
	exchangeRepo := repository.NewExchangeRepository()
	notificationRepo := repository.NewNotificationRepository(dbConn)
	auditRepo := repository.NewAuditRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	// Доставка уведомлений после фиксации транзакций.
	sinks := []outbox.Sink{outbox.NewStoreSink(notificationRepo), outbox.NewHubSink(hub)}
	var kafkaWriter *kafka.Writer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaWriter = outbox.NewKafkaWriter(cfg.Kafka.Brokers)
		sinks = append(sinks, outbox.NewKafkaSink(kafkaWriter, cfg.Kafka.NotifyTopic))
		logger.Log.WithField("brokers", cfg.Kafka.Brokers).Info("main: kafka sink enabled")
	}
	dispatcher := outbox.NewDispatcher(cfg.Notify.QueueSize, cfg.Notify.Workers, m, sinks...)
	dispatcher.Start()

	coord := txn.NewCoordinator(txManager, dispatcher)

	// Сервисы.
	ledgerService := service.NewLedgerService(ledgerRepo, coord, reader, m)
	creditService := service.NewCreditService(creditRepo, coord, reader, m, retry.Policy{
		MaxAttempts: cfg.Credit.MaxAttempts,
		Step:        cfg.Credit.RetryBackoff,
	})
	auditService := service.NewAuditService(auditRepo)
	orderService := service.NewOrderService(coord, reader, orderRepo, historyRepo, listingRepo, ledgerService, m, cfg.Orders.PaymentTimeout)
	negotiationService := service.NewNegotiationService(coord, reader, negotiationRepo, orderRepo, historyRepo, listingRepo, m, cfg.Orders.PaymentTimeout)
	reviewService := service.NewReviewService(coord, reader, reviewRepo, orderRepo, creditService)
	exchangeService := service.NewExchangeService(coord, reader, exchangeRepo, listingRepo, orderRepo, m)
	moderationService := service.NewModerationService(coord, creditService, auditService)
	notificationService := service.NewNotificationService(notificationRepo)
	rechargeService, err := service.NewRechargeService(coord, reader, rechargeRepo, ledgerService, cfg.Orders.RechargeTimeout)
	if err != nil {
		log.Fatalf("main: ошибка создания сервиса пополнений: %v", err)
	}
	seedService := service.NewSeedService(coord, userRepo, listingRepo, ledgerService, tokens)

	// Блокировка фонового прохода: Redis, если задан, иначе в пределах процесса.
	var (
		redisClient *redis.Client
		locker      lock.Locker = lock.NewLocalLocker()
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lock.NewRedisLocker(redisClient)
		logger.Log.WithField("addr", cfg.Redis.Addr).Info("main: redis sweep lock enabled")
	}

	sweeper := service.NewSweeper(coord, reader, orderRepo, historyRepo, rechargeService, auditService, locker, m, service.SweeperConfig{
		Interval:        cfg.Orders.SweepInterval,
		LockTTL:         cfg.Orders.SweepLockTTL,
		NegotiationIdle: cfg.Orders.NegotiationIdle,
	})
	goroutine.SafeGoWithContext(ctx, sweeper.Run)

	// HTTP хэндлеры.
	engine := httpRouter.SetupRouter(
		cfg,
		tokens,
		registry,
		httpHandlers.NewHealthHandler(dbConn, redisClient),
		httpHandlers.NewWSHandler(hub, tokens),
		httpHandlers.NewOrderHandler(orderService),
		httpHandlers.NewNegotiationHandler(negotiationService),
		httpHandlers.NewWalletHandler(ledgerService, rechargeService),
		httpHandlers.NewCreditHandler(creditService),
		httpHandlers.NewReviewHandler(reviewService),
		httpHandlers.NewExchangeHandler(exchangeService),
		httpHandlers.NewNotificationHandler(notificationService),
		httpHandlers.NewAdminHandler(moderationService, auditService, sweeper),
		httpHandlers.NewSeedHandler(seedService),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// Дожидаемся доставки уже принятых событий.
	dispatcher.Close()
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			log.Printf("main: ошибка закрытия kafka writer: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
