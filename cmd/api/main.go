package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/tickit/guild-ticket-service/internal/api/http"
	"github.com/tickit/guild-ticket-service/internal/api/http/handlers"
	"github.com/tickit/guild-ticket-service/internal/auth"
	"github.com/tickit/guild-ticket-service/internal/config"
	"github.com/tickit/guild-ticket-service/internal/crypto"
	"github.com/tickit/guild-ticket-service/internal/events"
	"github.com/tickit/guild-ticket-service/internal/notify"
	"github.com/tickit/guild-ticket-service/internal/observability"
	"github.com/tickit/guild-ticket-service/internal/persistence"
	"github.com/tickit/guild-ticket-service/internal/queue"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/internal/service"
	"github.com/tickit/guild-ticket-service/internal/tenant"
	"github.com/tickit/guild-ticket-service/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	cipher, err := crypto.NewCipher(cfg.Encryption)
	if err != nil {
		logger.Fatal("failed to init cipher", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	guildRepo := repository.NewGuildRepository(pool)

	resolver := tenant.NewResolver(tenant.Dependencies{
		Guilds: guildRepo,
		Platform: func(guildID string) repository.TicketRepository {
			return repository.NewTicketRepository(pool, guildID)
		},
		OpenSelfHosted: persistence.NewSelfHostedOpener(cfg.Postgres, logger),
		Cipher:         cipher,
		Logger:         logger,
	})
	defer resolver.Close()

	// Job statuses go to Redis when it is reachable so clients can poll
	// across restarts; otherwise they stay in process memory.
	var statusStore queue.StatusStore
	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, keeping job statuses in memory", zap.Error(err))
		statusStore = queue.NewMemoryStatusStore()
	} else {
		statusStore = queue.NewRedisStatusStore(redis.Client, 24*time.Hour)
	}
	pingCancel()

	manager := queue.NewManager(queue.Config{
		TickInterval:       cfg.Queue.TickInterval(),
		HandlerTimeout:     cfg.Queue.HandlerTimeout(),
		RetryBaseDelay:     cfg.Queue.RetryBaseDelay(),
		DefaultMaxAttempts: cfg.Queue.DefaultMaxAttempts,
	}, queue.Dependencies{
		Status:  statusStore,
		Metrics: metrics,
		Logger:  logger,
	})

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifier := notify.NewNotifier(dispatcher, logger, cfg.Notify)
	notifier.RegisterHandlers()

	jobWorker := worker.NewWorker(worker.Dependencies{
		Resolver:   resolver,
		Guilds:     guildRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	jobWorker.Register(manager)
	manager.Start()
	defer manager.Stop()

	guildService := service.NewGuildService(service.GuildServiceDependencies{
		Guilds:     guildRepo,
		Cipher:     cipher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketServiceDependencies{
		Guilds:   guildRepo,
		Resolver: resolver,
		Queue:    manager,
		Status:   statusStore,
		Logger:   logger,
	})

	var tokens *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.GuildTokenTTLMinutes)
	}
	authMiddleware := auth.NewGuildAuthMiddleware(tokens, cfg.Auth.JWTSecret != "")

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		GuildConfig:    handlers.NewGuildConfigHandler(guildService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
