package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/delivery/internal/di"
	"github.com/hanko-field/delivery/internal/handlers"
	"github.com/hanko-field/delivery/internal/platform/config"
	"github.com/hanko-field/delivery/internal/platform/observability"
	"github.com/hanko-field/delivery/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(os.Getenv, startedAt)

	reg, err := di.OpenRegistry(ctx, cfg, logger.Named("source"))
	if err != nil {
		logger.Fatal("failed to open delivery source", zap.String("source", cfg.Source.Kind), zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, reg,
		di.WithLogger(logger.Named("delivery")),
		di.WithBuildInfo(buildInfo),
	)
	if err != nil {
		_ = reg.Close(ctx)
		logger.Fatal("failed to initialise container", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthService(container.Services.Health),
	)
	deliveryHandlers := handlers.NewDeliveryHandlers(container.Services.Delivery)

	httpLogger := logger.Named("http")
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithAPIMiddlewares(handlers.RateLimitMiddleware(cfg.RateLimits.RequestsPerSecond, cfg.RateLimits.Burst)),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithDeliveryRoutes(deliveryHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := httpLogger.With(zap.String("addr", server.Addr), zap.String("source", cfg.Source.Kind))
	go func() {
		serverLogger.Info("delivery api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Error("failed to close delivery source", zap.Error(err))
	}
}

func buildInfoFromEnv(getenv func(string) string, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(getenv("DELIVERY_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(getenv("DELIVERY_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(getenv("DELIVERY_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
