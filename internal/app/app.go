package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/repository"
	mongostore "github.com/utafrali/storefront/internal/repository/mongo"
	"github.com/utafrali/storefront/internal/repository/postgres"
	redisstore "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/search"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	serviceName    = "storefront"
	idempotencyTTL = 24 * time.Hour
)

// stores is the persistence layer selected by STORE_DRIVER.
type stores struct {
	users    repository.UserRepository
	wishlist repository.WishlistStore
	tokens   repository.RefreshTokenRepository
	products repository.ProductRepository
	ping     func(ctx context.Context) error
	close    func(ctx context.Context) error
}

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	stores         *stores
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	runCancel      context.CancelFunc
	runCtx         context.Context
}

// New connects to every dependency and builds the HTTP server. Redis is
// optional: without it products are read uncached, event deduplication is
// kept in memory and the cart endpoints answer 503.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		logger.Warn("redis unavailable, running without product cache and cart",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		rdb = nil
	}

	products := st.products
	var carts repository.CartRepository
	var idempotency pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if rdb != nil {
		products = redisstore.NewProductCache(products, rdb, cfg.ProductCacheTTL, logger)
		carts = redisstore.NewCartStore(rdb, cfg.CartTTL)
		idempotency = pkgkafka.NewRedisIdempotencyStore(rdb, serviceName+":events:", idempotencyTTL)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	events := event.NewProducer(producer, logger)

	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup,
		Topic:    event.TopicProductDeleted,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	}, pkgkafka.IdempotentHandler(idempotency, event.ProductDeletedHandler(st.wishlist, logger), logger), logger, pkgkafka.WithDLQ(dlq))

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	authService := service.NewAuthService(st.users, st.tokens, jwtManager, logger, service.WithUserEvents(events))
	var productOpts []service.ProductOption
	index := openSearchIndex(ctx, cfg, logger)
	if index != nil {
		productOpts = append(productOpts, service.WithSearchIndex(index))
	}
	productService := service.NewProductService(products, events, logger, productOpts...)

	wishlistOpts := []service.WishlistOption{service.WithWishlistEvents(events)}
	if cfg.WishlistValidateProducts {
		wishlistOpts = append(wishlistOpts, service.WithProductValidation(newCatalog(cfg, products, logger)))
	}
	wishlistService := service.NewWishlistService(st.wishlist, logger, wishlistOpts...)
	cartService := service.NewCartService(carts, products, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register(cfg.StoreDriver, st.ping)
	healthHandler.RegisterOptional("kafka", producer.Ping)
	if index != nil {
		healthHandler.RegisterOptional("elasticsearch", index.Ping)
	}
	if rdb != nil {
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	runCtx, runCancel := context.WithCancel(context.Background())
	router := handler.NewRouter(runCtx, handler.RouterConfig{
		Auth:               authService,
		Wishlist:           wishlistService,
		Cart:               cartService,
		Products:           productService,
		TokenValidator:     jwtManager.TokenValidator(),
		Health:             healthHandler,
		Logger:             logger,
		CORS:               cors,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
		AuthRateLimitBurst: cfg.AuthRateLimitBurst,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		stores: st,
		redis:  rdb,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		producer:       producer,
		consumer:       consumer,
		dlq:            dlq,
		tracerShutdown: tracerShutdown,
		runCtx:         runCtx,
		runCancel:      runCancel,
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := database.NewMongoDatabase(ctx, cfg.Mongo(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

		users := mongostore.NewUserRepository(db)
		return &stores{
			users:    users,
			wishlist: users,
			tokens:   mongostore.NewRefreshTokenRepository(db),
			products: mongostore.NewProductRepository(db),
			ping:     func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
			close:    db.Client().Disconnect,
		}, nil

	default:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDB),
		)

		users := postgres.NewUserRepository(pool)
		return &stores{
			users:    users,
			wishlist: users,
			tokens:   postgres.NewRefreshTokenRepository(pool),
			products: postgres.NewProductRepository(pool),
			ping:     pool.Ping,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil
	}
}

// openSearchIndex connects to Elasticsearch when ELASTICSEARCH_URL is set.
// A failed connection leaves search disabled rather than failing startup.
func openSearchIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) *search.Elasticsearch {
	if cfg.ElasticsearchURL == "" {
		return nil
	}
	index, err := search.NewElasticsearch(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
	if err != nil {
		logger.Warn("elasticsearch unavailable, product search disabled",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	logger.Info("connected to Elasticsearch", slog.String("index", cfg.ElasticsearchIndex))
	return index
}

// newCatalog picks the product existence check used when wishlist
// validation is on: the remote catalog service when configured, else the
// local product table.
func newCatalog(cfg *config.Config, products repository.ProductRepository, logger *slog.Logger) catalog.Checker {
	if cfg.CatalogBaseURL == "" {
		return catalog.NewLocal(products)
	}
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("catalog"),
		logger,
	)
	logger.Info("wishlist validates against remote catalog", slog.String("base_url", cfg.CatalogBaseURL))
	return catalog.NewRemote(client, cfg.CatalogBaseURL)
}

// Run serves HTTP and consumes product.deleted events until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.consumer.Start(a.runCtx); err != nil {
			a.logger.Error("product.deleted consumer stopped", slog.String("error", err.Error()))
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP first so in-flight
// requests finish, then the consumer, tracer, Kafka writers, Redis and the
// store.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application")
	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	a.runCancel()
	if err := a.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close consumer: %w", err))
	}

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer tracerCancel()
	if err := a.tracerShutdown(tracerCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	if err := a.dlq.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close dlq producer: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer storeCancel()
	if err := a.stores.close(storeCtx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		a.logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
	} else {
		a.logger.Info("application shutdown complete")
	}
	return err
}
