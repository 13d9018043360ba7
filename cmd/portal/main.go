package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/abz-agency/employee-portal/internal/api/http"
	"github.com/abz-agency/employee-portal/internal/api/http/handlers"
	"github.com/abz-agency/employee-portal/internal/config"
	"github.com/abz-agency/employee-portal/internal/guard"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/login"
	"github.com/abz-agency/employee-portal/internal/observability"
	"github.com/abz-agency/employee-portal/internal/persistence"
	"github.com/abz-agency/employee-portal/internal/session"
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

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout(), logger)

	sessions := session.NewManager(func(sid string) session.Backend {
		return session.NewRedisBackend(redis.Client, "session:"+sid+":")
	}, logger, metrics)
	refresher := session.NewRefresher(identityClient, logger, metrics)

	flows := login.NewRegistry(func() *login.Machine {
		return login.NewMachine(identityClient, cfg.Session.DefaultTTL(), cfg.Session.RememberMeTTL(), logger)
	})

	routeGuard := guard.New(guard.Config{
		Service:      identityClient,
		Sessions:     sessions,
		Refresher:    refresher,
		Logger:       logger,
		Metrics:      metrics,
		LoginPath:    cfg.Guard.LoginPath,
		FallbackPath: cfg.Guard.FallbackPath,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, redis),
		Auth:   handlers.NewAuthHandler(flows, sessions, logger),
		Portal: handlers.NewPortalHandler(),
		Guard:  routeGuard,
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
