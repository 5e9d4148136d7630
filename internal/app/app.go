package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/harborline/storefront-search/internal/catalogue"
	"github.com/harborline/storefront-search/internal/config"
	"github.com/harborline/storefront-search/internal/event"
	handler "github.com/harborline/storefront-search/internal/handler/http"
	"github.com/harborline/storefront-search/internal/index"
	"github.com/harborline/storefront-search/internal/service"
	"github.com/harborline/storefront-search/internal/store"
	"github.com/harborline/storefront-search/internal/store/memory"
	pgstore "github.com/harborline/storefront-search/internal/store/postgres"
	redisstore "github.com/harborline/storefront-search/internal/store/redis"
	"github.com/harborline/storefront-search/pkg/database"
	"github.com/harborline/storefront-search/pkg/health"
	"github.com/harborline/storefront-search/pkg/httpclient"
	pkgkafka "github.com/harborline/storefront-search/pkg/kafka"
	"github.com/harborline/storefront-search/pkg/tracing"
)

// App wires together all dependencies and runs the search service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	indexManager *index.Manager
	consumers    []*pkgkafka.Consumer
	producer     *pkgkafka.Producer
	httpServer   *http.Server

	pgPool          *pgxpool.Pool
	redisClient     *goredis.Client
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance. Storage backends are probed at
// startup: a backend that cannot be reached is logged and skipped rather
// than failing boot, because the index can always be rebuilt from the
// catalogue.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		shutdown, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName:  "storefront-search",
			Environment:  cfg.Environment,
			OTLPEndpoint: cfg.TracingEndpoint,
			SampleRate:   cfg.TracingSample,
			Enabled:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracingShutdown = shutdown
	}

	// Snapshot store backends, in failover priority order.
	var backends []store.Store

	if cfg.PostgresEnabled {
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = cfg.PostgresHost
		pgCfg.Port = cfg.PostgresPort
		pgCfg.User = cfg.PostgresUser
		pgCfg.Password = cfg.PostgresPassword
		pgCfg.DBName = cfg.PostgresDB
		pgCfg.SSLMode = cfg.PostgresSSLMode

		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			logger.Warn("postgres unavailable, snapshot store degraded",
				slog.String("error", err.Error()))
		} else {
			a.pgPool = pool
			ps := pgstore.New(pool)
			if err := ps.EnsureSchema(ctx); err != nil {
				logger.Warn("postgres schema setup failed, skipping backend",
					slog.String("error", err.Error()))
			} else {
				backends = append(backends, ps)
			}
		}
	}

	if cfg.RedisEnabled {
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, snapshot store degraded",
				slog.String("error", err.Error()))
		} else {
			a.redisClient = rdb
			backends = append(backends, redisstore.New(rdb, cfg.RedisSnapshotBytes))
		}
	}

	// Last resort keeps the service functional with no persistence at all.
	backends = append(backends, memory.New())
	snapshotStore := store.NewFailover(logger, backends...)

	logger.Info("snapshot store composed",
		slog.Int("backends", len(snapshotStore.Backends())))

	// Catalogue client behind retries and a circuit breaker.
	hc := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(
		hc, httpclient.DefaultCircuitBreakerConfig("catalogue"), logger)
	catalogueClient := catalogue.NewHTTPClient(cfg.CatalogueURL, cb, logger)

	// Index manager.
	a.indexManager = index.NewManager(snapshotStore, catalogueClient, logger, index.Config{
		StaleAfter:    cfg.IndexStaleAfter,
		SyncTimeout:   cfg.IndexSyncTimeout,
		WatchInterval: cfg.IndexWatchInterval,
	})

	// Kafka: change consumers plus the synced-event producer.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(
			pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

		publisher := event.NewSyncedPublisher(a.producer, logger)
		a.indexManager.OnSynced(func(ctx context.Context, count int) {
			publisher.PublishSynced(ctx, count)
		})

		changeConsumer := event.NewConsumer(a.indexManager, cfg.ResyncDebounce, logger)
		for _, topic := range []string{event.TopicProductChanged, event.TopicTermChanged} {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaGroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			}, changeConsumer.Handle, logger)
			a.consumers = append(a.consumers, c)
		}
	}

	// Service layer. The redis client doubles as the live-result cache.
	searchService := service.NewSearchService(
		a.indexManager, catalogueClient, a.redisClient, cfg.QueryCacheTTL, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("index", func(context.Context) error {
		if !a.indexManager.IsReady() {
			return errors.New("index not ready")
		}
		return nil
	})
	if a.pgPool != nil {
		healthHandler.Register("postgres", a.pgPool.Ping)
	}
	if a.redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
	}
	if cfg.KafkaEnabled {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	router := handler.NewRouter(searchService, healthHandler, handler.RouterConfig{
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Environment:    cfg.Environment,
		},
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		SearchCacheMaxAge: cfg.SearchCacheMaxAge,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server, Kafka consumers, index initialization, and the
// staleness watcher, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Bring the index up while traffic is already being served; searches
	// fall back to live catalogue lookups until it is ready. A failed
	// initial sync is retried by the staleness watcher.
	go func() {
		if err := a.indexManager.Initialize(ctx); err != nil {
			a.logger.Error("index initialization failed, serving live fallback",
				slog.String("error", err.Error()))
		}
	}()
	go a.indexManager.Watch(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}

	if a.tracingShutdown != nil {
		if err := a.tracingShutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
