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

	httptransport "github.com/abz-agency/employee-portal/internal/api/http"
	"github.com/abz-agency/employee-portal/internal/config"
	"github.com/abz-agency/employee-portal/internal/identityserver"
	"github.com/abz-agency/employee-portal/internal/observability"
	"github.com/abz-agency/employee-portal/internal/persistence"
	"github.com/abz-agency/employee-portal/internal/repository"
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

	metrics := observability.NewMetrics()

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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	accounts := repository.NewAccountRepository(pg.PoolHandle())
	codes := identityserver.NewRedisCodeStore(redis.Client,
		time.Duration(cfg.Auth.VerificationCodeTTLMinutes)*time.Minute)

	svc := identityserver.NewService(cfg.Auth, identityserver.Dependencies{
		Accounts: accounts,
		Codes:    codes,
	}, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	identityserver.NewHandler(svc, logger).Register(app)

	addr := cfg.App.Host + ":" + getPort()

	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// getPort lets the identity binary share an .env with the portal while
// binding its own port.
func getPort() string {
	if port := os.Getenv("IDENTITY_PORT"); port != "" {
		return port
	}
	return "8081"
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
