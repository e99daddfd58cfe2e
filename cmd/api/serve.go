package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/k8s-test-service/internal/api/http"
	"github.com/spec-kit/k8s-test-service/internal/api/http/handlers"
	"github.com/spec-kit/k8s-test-service/internal/auth"
	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/dependency"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
	"github.com/spec-kit/k8s-test-service/internal/faults"
	"github.com/spec-kit/k8s-test-service/internal/health"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	"github.com/spec-kit/k8s-test-service/internal/service"
	"github.com/spec-kit/k8s-test-service/internal/workload"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App, cfg.Deployment)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics, err := observability.NewRegistry(logger, observability.DefaultDefinitions())
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	identity, err := deployment.Resolve(cfg.App, cfg.Deployment)
	if err != nil {
		return fmt.Errorf("failed to resolve deployment identity: %w", err)
	}

	credentials, err := auth.LoadCredentials(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Credentials: credentials,
		Tokens:      tokens,
		Metrics:     metrics,
		Logger:      logger,
	})

	generator := workload.NewGenerator(workload.LimitsFromConfig(cfg.Workload), metrics, logger)
	defer generator.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	checks := []health.Checker{
		health.IdentityCheck(identity),
		health.WorkerPoolCheck(generator),
	}
	pg, err := dependency.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to configure postgres: %w", err)
	}
	if pg != nil {
		defer pg.Close()
		checks = append(checks, pg)
	}
	if rdb := dependency.NewRedis(ctx, cfg.Redis, logger); rdb != nil {
		defer rdb.Close()
		checks = append(checks, rdb)
	}
	aggregator := health.NewAggregator(metrics, logger, checks)
	simulator := faults.NewSimulator(cfg.Faults.TimeoutDelay(), metrics, logger)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		BaseContext: ctx,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Info:                handlers.NewInfoHandler(cfg.App, identity, startedAt),
		Auth:                handlers.NewAuthHandler(authService),
		Deployment:          handlers.NewDeploymentHandler(identity),
		LoadTest:            handlers.NewLoadTestHandler(generator, identity),
		Errors:              handlers.NewErrorsHandler(simulator),
		Health:              handlers.NewHealthHandler(aggregator, cfg.App, identity, startedAt),
		Metrics:             handlers.NewMetricsHandler(metrics),
		Observability:       handlers.NewObservabilityHandler(logger),
		AuthMiddleware:      auth.NewAuthMiddleware(authService),
		RequireWorkloadAuth: cfg.Workload.RequireAuth,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("instance_id", identity.InstanceID()),
			zap.Bool("workload_auth", cfg.Workload.RequireAuth))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(logger):
	case <-parent.Done():
	}

	// abort held requests (timeout simulation, async waits) so shutdown is not held open
	cancel()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
