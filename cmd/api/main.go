package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/returnflow/internal/api/http"
	"github.com/spec-kit/returnflow/internal/api/http/handlers"
	"github.com/spec-kit/returnflow/internal/auth"
	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/config"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/observability"
	"github.com/spec-kit/returnflow/internal/persistence"
	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/risk"
	"github.com/spec-kit/returnflow/internal/service"
	"github.com/spec-kit/returnflow/internal/session"
	"github.com/spec-kit/returnflow/internal/specialist"
	"github.com/spec-kit/returnflow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var provider repository.Provider
	var historyRepo repository.ReturnHistoryRepository
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		provider = repository.NewPostgresProvider(pg.PoolHandle())
		historyRepo = repository.NewReturnHistoryRepository(pg.PoolHandle())
	} else {
		provider = repository.NewDemoProvider()
		historyRepo = repository.NewMemoryHistoryRepository()
	}

	var redis *persistence.Redis
	storeOpts := []session.StoreOption{}
	if cfg.Session.Store == string(session.StoreTypeRedis) {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		storeOpts = append(storeOpts, session.WithRedisClient(redis.Client), session.WithRedisTTL(2*cfg.Session.IdleTimeout))
	}
	store, err := session.NewStore(session.StoreType(cfg.Session.Store), storeOpts...)
	if err != nil {
		logger.Fatal("failed to create session store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	rules, err := classifier.LoadFile(cfg.Policy.RulesFile)
	if err != nil {
		logger.Fatal("failed to load classifier rules", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	historyService := service.NewHistoryService(historyRepo, dispatcher, logger)
	historyService.RegisterHandlers()
	if sink := worker.StartEventSink(dispatcher, cfg.Kafka, logger); sink != nil {
		defer sink.Close() //nolint:errcheck
	}

	specialists := specialist.New(specialist.Dependencies{
		Provider: provider,
		Rules:    rules,
		Scorer:   risk.NewScorer(cfg.Policy.FraudRiskThreshold),
		Config: specialist.Config{
			ReturnWindowDays: cfg.Policy.ReturnWindowDays,
			RecentOrderLimit: cfg.Policy.RecentOrderLimit,
			TrackingPrefix:   cfg.Policy.TrackingPrefix,
			DefaultCarrier:   cfg.Policy.DefaultCarrier,
			LabelBaseURL:     cfg.Policy.LabelBaseURL,
			IntentFallback:   specialist.FallbackPolicy(cfg.Policy.IntentFallback),
			ReasonFallback:   specialist.FallbackPolicy(cfg.Policy.ReasonFallback),
		},
		Logger: logger,
	})

	orchestrator := service.NewOrchestrator(service.Dependencies{
		Store:       store,
		Provider:    provider,
		Specialists: specialists,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		Config: service.OrchestratorConfig{
			MaxHistory:    cfg.Session.MaxHistory,
			IdleTimeout:   cfg.Session.IdleTimeout,
			TerminalGrace: cfg.Session.TerminalGrace,
			SweepInterval: cfg.Session.SweepInterval,
		},
	})
	go orchestrator.RunJanitor(ctx)

	returnService := service.NewReturnService(provider, dispatcher, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Sessions:       handlers.NewSessionsHandler(orchestrator),
		Returns:        handlers.NewReturnsHandler(returnService, historyService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		TurnLimiter:    httptransport.NewTurnLimiter(cfg.Session.TurnsPerSecond, cfg.Session.TurnBurst),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
