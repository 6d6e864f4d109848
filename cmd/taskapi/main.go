package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskapi/pkg/api"
	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/config"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/storage/sqlstore"
	"github.com/platinummonkey/taskapi/pkg/swagger"
)

var version = "dev"

var (
	configFile  = flag.String("config", "", "Path to a YAML config file")
	envFile     = flag.String("env-file", ".env", "Path to a dotenv file (ignored when missing)")
	migrateOnly = flag.Bool("migrate", false, "Apply database migrations and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig(config.LoadOptions{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := observability.NewLoggerFromConfig(cfg.Observability.LogConfig())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		err = migrate(ctx, cfg)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.WithError(err).Error("Task API exited with error")
		logCloser.Close()
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	storeCfg := cfg.Storage
	storeCfg.AutoMigrate = true

	store, err := sqlstore.Open(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return store.Close()
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	defer observability.RecoverPanic(logger, "main")

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelCfg := cfg.Observability.OTelConfig()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	store, err := sqlstore.Open(ctx, cfg.Storage)
	if err != nil {
		providers.Shutdown(context.Background())
		return fmt.Errorf("failed to open store: %w", err)
	}
	shutdown.RegisterShutdownFunc("store", func(context.Context) error {
		return store.Close()
	})
	shutdown.RegisterShutdownFunc("otel", providers.Shutdown)
	logger.WithField("driver", store.Driver()).Info("Store ready")

	// Left as a nil interface when redis is not configured
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled() {
		client, err := newRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			shutdown.Shutdown(context.Background())
			return err
		}
		rdb = client
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return client.Close()
		})
	}

	tokens, err := auth.NewTokenService(cfg.Auth.TokenConfig())
	if err != nil {
		shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to create token service: %w", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)

		collector, err := observability.NewStatsCollector(store, metrics, logger, cfg.Observability.StatsSchedule)
		if err != nil {
			shutdown.Shutdown(context.Background())
			return fmt.Errorf("failed to create stats collector: %w", err)
		}
		collector.Start()
		shutdown.RegisterShutdownFunc("stats collector", collector.Stop)
	}

	limiter, err := newLimiter(cfg, rdb)
	if err != nil {
		shutdown.Shutdown(context.Background())
		return err
	}

	apiServer, err := api.NewServer(api.Options{
		Store:        store,
		Tokens:       tokens,
		Hasher:       hasher,
		Metrics:      metrics,
		Logger:       logger,
		Limiter:      limiter,
		TrustProxy:   cfg.Server.TrustProxy,
		APIPrefix:    cfg.Server.APIPrefix,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Tracing:      otelCfg.Enabled,
	})
	if err != nil {
		shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to create API server: %w", err)
	}

	opsRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(opsRouter, observability.NewHealthChecker(store.DB(), rdb, version))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsRouter, registry)
	}
	swagger.NewSwaggerHandlers().RegisterRoutes(opsRouter)

	servers := []*http.Server{
		newHTTPServer(cfg.Server, cfg.Server.Addr(), apiServer),
		newHTTPServer(cfg.Server, cfg.Server.OpsAddr(), opsRouter),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		shutdown.AddServer(srv)
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return shutdown.Wait(gctx)
	})

	logger.WithFields(map[string]interface{}{
		"version":    version,
		"addr":       cfg.Server.Addr(),
		"ops_addr":   cfg.Server.OpsAddr(),
		"api_prefix": cfg.Server.APIPrefix,
	}).Info("Task API started")

	return g.Wait()
}

func newHTTPServer(cfg config.ServerConfig, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// newRedisClient connects to redis. An unreachable server is logged but not
// fatal: the limiter fails open and readiness reports it.
func newRedisClient(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", opts.Addr).Warn("Redis is not reachable yet")
	} else {
		logger.WithField("addr", opts.Addr).Info("Redis connected")
	}
	return client, nil
}

func newLimiter(cfg *config.Config, rdb redis.UniversalClient) (middleware.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	limiterCfg := cfg.RateLimit.LimiterConfig(cfg.Server.TrustProxy)
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis rate limit backend requires redis.url")
		}
		return middleware.NewRedisLimiter(rdb, limiterCfg, middleware.DefaultRedisPrefix), nil
	default:
		return middleware.NewMemoryLimiter(limiterCfg), nil
	}
}
