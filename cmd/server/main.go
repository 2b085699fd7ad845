package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatzorin/gig-escrow/internal/auth"
	"github.com/ignatzorin/gig-escrow/internal/authz"
	"github.com/ignatzorin/gig-escrow/internal/config"
	"github.com/ignatzorin/gig-escrow/internal/db"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	httpRouter "github.com/ignatzorin/gig-escrow/internal/http/router"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/memstore"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/messaging"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/persistence"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/redisstore"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/handler"
	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/metrics"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/seed"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
	"github.com/ignatzorin/gig-escrow/internal/worker"
	"github.com/ignatzorin/gig-escrow/internal/ws"
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
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}
	mainLog := logger.WithComponent("main")

	checks := map[string]handler.HealthCheck{}

	// Хранилище.
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("main: ошибка подключения к хранилищу: %v", err)
	}
	defer safeClose(store)
	checks["store"] = store.Ping

	// История антифрода: Redis, если задан, иначе память процесса.
	retention := max(cfg.Fraud.OrderWindow, cfg.Fraud.AccountWindow, cfg.Fraud.ReviewWindow)
	var history fraud.History = fraud.NewMemoryHistory(retention)
	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("main: %v", err)
		}
		defer client.Close()
		history = redisstore.NewHistory(client, retention)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	// События: WebSocket всегда, Kafka по конфигурации.
	hub := ws.NewHub()
	go hub.Run(ctx)
	publishers := []events.Publisher{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				mainLog.WithError(err).Warn("main: ошибка закрытия kafka writer")
			}
		}()
		publishers = append(publishers, kafkaPublisher)
	}
	publisher := events.NewMulti(publishers...)

	m := metrics.New()

	// TODO: заменить песочницу клиентом реального платёжного шлюза, когда появится его API.
	processor := payment.NewSandbox()
	processor.DeclineAbove = cfg.SandboxDeclineAbove
	ledger := escrow.NewLedger(store, processor, cfg.ProcessorTimeout, cfg.Currency).WithObserver(m)

	az, err := authz.New()
	if err != nil {
		log.Fatalf("main: ошибка инициализации прав: %v", err)
	}

	thresholds := fraud.DefaultThresholds()
	thresholds.PriceCeiling = cfg.Fraud.PriceCeiling
	thresholds.OrderVelocity = cfg.Fraud.OrderVelocity
	thresholds.OrderWindow = cfg.Fraud.OrderWindow
	thresholds.AccountVelocity = cfg.Fraud.AccountVelocity
	thresholds.AccountWindow = cfg.Fraud.AccountWindow
	thresholds.ReviewVolume = cfg.Fraud.ReviewVolume
	thresholds.ReviewNegativeShare = cfg.Fraud.ReviewNegativeShare
	thresholds.ReviewWindow = cfg.Fraud.ReviewWindow
	fraudEngine := fraud.NewEngine(history, store.FraudAlerts(), publisher, m, thresholds)

	useCases := orchestrator.NewUseCases(store, ledger, cfg.PlatformFeePercent)
	orch := orchestrator.New(orchestrator.Deps{
		Store:     store,
		Ledger:    ledger,
		UseCases:  useCases,
		Authz:     az,
		Fraud:     fraudEngine,
		Policy:    orchestrator.Policy{BlockHigh: cfg.FraudBlockHigh},
		Publisher: publisher,
		Metrics:   m,
	})

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	extractor, err := fingerprint.NewExtractor(cfg.FingerprintSecret)
	if err != nil {
		log.Fatalf("main: %v", err)
	}

	if cfg.Env == "development" && cfg.StoreDriver == config.StoreDriverMemory {
		demo, err := seed.Run(ctx, store, tokens, cfg.Currency)
		if err != nil {
			log.Fatalf("main: %v", err)
		}
		mainLog.WithField("gig_id", demo.Gig.ID).
			WithField("package_id", demo.Gig.Packages[0].ID).
			WithField("buyer_token", demo.BuyerToken).
			WithField("seller_token", demo.SellerToken).
			WithField("admin_token", demo.AdminToken).
			Info("main: демо-данные созданы")
	}

	// Фоновые задачи.
	autoAccept := order.NewAutoAcceptUseCase(store, useCases.TransitionOrder, cfg.AutoAcceptAfter)
	runner := worker.NewRunner(m,
		worker.PayoutJob(orch, cfg.WorkerInterval),
		worker.AutoAcceptJob(autoAccept, orch, cfg.WorkerInterval, nil),
	)
	runner.Start(ctx)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, tokens, extractor, httpRouter.Handlers{
		Orders:   handler.NewOrderHandler(orch),
		Escrow:   handler.NewEscrowHandler(orch, cfg.Currency),
		Disputes: handler.NewDisputeHandler(orch),
		Fraud:    handler.NewFraudHandler(orch),
		Health:   handler.NewHealthHandler(checks),
		WS:       handler.NewWSHandler(hub, tokens, cfg.AllowedOrigins),
		Metrics:  m.Handler(),
	})

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
			mainLog.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	mainLog.WithField("port", cfg.HTTPPort).WithField("store", cfg.StoreDriver).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	runner.Wait()
}

// openStore выбирает реализацию хранилища по STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.WithComponent("main").Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		return memstore.New(), nil
	}

	// Подключение к базе и миграции.
	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return persistence.NewPostgresStore(conn), nil
}

// safeClose закрывает хранилище.
func safeClose(store repository.Store) {
	if err := store.Close(); err != nil {
		log.Printf("main: ошибка закрытия хранилища: %v", err)
	}
}
