package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aircall-sync/internal/config"
	"aircall-sync/internal/credential"
	"aircall-sync/internal/database"
	"aircall-sync/internal/dedup"
	"aircall-sync/internal/http/handler"
	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/repo"
	"aircall-sync/internal/service"
	"aircall-sync/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  `Start the Aircall webhook receiver and the sync workers`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	httperr.ExposeErrorIDs(cfg.IsDev())

	log.Info(ctx, "starting aircall sync",
		zap.String("version", telemetry.ServiceVersion),
		zap.String("service", cfg.OTELServiceName),
		zap.Strings("backends", cfg.EnabledBackends()),
	)

	// Telemetria OTLP é opt-in
	var metrics *telemetry.Metrics
	if cfg.TelemetryEnabled() {
		providers := telemetry.Init(ctx, telemetry.Options{
			ServiceName:   cfg.OTELServiceName,
			Endpoint:      cfg.OTELExporterEndpoint,
			SamplingRatio: cfg.OTELSamplingRatio,
		}, log)
		metrics = providers.Metrics
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				log.Error(shutdownCtx, "failed to shutdown telemetry providers", zap.Error(err))
			}
		}()
	} else {
		log.Info(ctx, "telemetry disabled (opt-in only or missing endpoint)")
	}

	registry := telemetry.NewRegistry()

	var infraChecks []handler.Check

	// Redis: persistência de credenciais e deduplicação de reentregas
	var redisClient *redis.Client
	var credStore credential.Store
	var guard service.Guard
	if cfg.RedisURL != "" {
		redisClient, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info(ctx, "redis connected")

		credStore = credential.NewRedisStore(redisClient)

		var duplicates metric.Int64Counter
		if metrics != nil {
			duplicates = metrics.Redeliveries
		}
		guard = dedup.NewRedisGuard(redisClient, cfg.DedupTTL(), duplicates)

		infraChecks = append(infraChecks, handler.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		log.Info(ctx, "redis disabled, credentials kept in memory and redeliveries not detected")
	}

	// Postgres: journal de resultados
	var journal service.Journal
	if cfg.DatabaseURL != "" {
		log.Info(ctx, "running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Info(ctx, "database connected")

		outcomes := repo.NewOutcomeRepository(pool)
		journal = outcomes
		infraChecks = append(infraChecks, handler.Check{Name: "postgres", Probe: outcomes.Ping})
	} else {
		log.Info(ctx, "database disabled, sync outcomes are only logged")
	}

	backends := buildBackends(cfg, log, credStore, registry)
	warmUp(ctx, log, backends)

	syncService := service.NewSyncService(backends.targets, log)
	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		Workers:   cfg.WorkerPoolSize,
		QueueSize: cfg.QueueSize,
		Processor: syncService,
		Guard:     guard,
		Journal:   journal,
		Recorder:  registry,
		Logger:    log,
	})
	dispatcher.Start(ctx)

	r := buildRouter(RouterDeps{
		Cfg:            cfg,
		Log:            log,
		Metrics:        metrics,
		Registry:       registry,
		WebhookHandler: handler.NewWebhookHandler(dispatcher),
		HealthHandler:  handler.NewHealthHandler(cfg.OTELServiceName, syncService.Targets(), append(backends.checks, infraChecks...)),
		DebugHandler:   handler.NewDebugHandler(cfg.AppEnv, backends.inspectors()),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(ctx, "starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	// Primeiro para a entrada, depois drena a fila.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "dispatcher did not drain before deadline", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete")
	return nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// warmUp acquires every backend credential once. Failures are logged only:
// the first event retries the refresh.
func warmUp(ctx context.Context, log *logger.Logger, backends backendSet) {
	for _, cache := range backends.caches {
		wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := cache.GetValid(logger.SetBackendInContext(wctx, cache.Backend()))
		cancel()
		if err != nil {
			log.Warn(ctx, "credential warm-up failed",
				logger.Module("credential"),
				logger.Action("warm_up"),
				logger.Backend(cache.Backend()),
				zap.Error(err),
			)
		}
	}
}
