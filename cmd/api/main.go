package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/carebridge/support-service/internal/api/http"
	"github.com/carebridge/support-service/internal/api/http/handlers"
	"github.com/carebridge/support-service/internal/auth"
	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/events"
	"github.com/carebridge/support-service/internal/observability"
	"github.com/carebridge/support-service/internal/persistence"
	"github.com/carebridge/support-service/internal/presence"
	"github.com/carebridge/support-service/internal/repository"
	"github.com/carebridge/support-service/internal/repository/memory"
	"github.com/carebridge/support-service/internal/service"
	"github.com/carebridge/support-service/internal/stream"
	"github.com/carebridge/support-service/internal/worker"
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

	var (
		ticketRepo  repository.TicketRepository
		channelRepo repository.ChannelRepository
		messageRepo repository.MessageRepository
		tracker     presence.Tracker

		healthPg    *persistence.Postgres
		healthRedis *persistence.Redis
	)

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()

		ticketRepo = repository.NewTicketRepository(pool)
		channelRepo = repository.NewChannelRepository(pool)
		messageRepo = repository.NewMessageRepository(pool)
		tracker = presence.NewRedisTracker(redis.Client)
		healthPg = pg
		healthRedis = redis
	} else {
		ticketRepo = memory.NewTicketStore()
		channelRepo = memory.NewChannelStore()
		messageRepo = memory.NewMessageStore()
		tracker = presence.NewMemoryTracker()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	broker := stream.NewBroker(cfg.Stream.SubscriberBuffer, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Broker:     broker,
		Meeting:    cfg.Meeting,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		ChannelRepo: channelRepo,
		MessageRepo: messageRepo,
		Presence:    tracker,
		Dispatcher:  dispatcher,
		Broker:      broker,
		Logger:      logger,
	})
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	janitor := worker.NewRetentionJanitor(channelRepo, messageRepo, metrics, cfg.Retention, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal("failed to start retention janitor", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthPg, healthRedis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Chat:           handlers.NewChatHandler(chatService),
		WS:             handlers.NewWSHandler(chatService, ticketService, broker, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	janitor.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
