package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/auth"
	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/libs/grpcx"
	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"github.com/md-rashed-zaman/tenantbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/tenantbook/libs/otel"
	"github.com/md-rashed-zaman/tenantbook/libs/runtime"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/seed"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/tenantconfig"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
				return errors.New("one of JWT_SECRET or JWKS_URL is required")
			}
			return serve(cfg)
		},
	}
}

// backend is everything that differs between the postgres and memory
// storage modes.
type backend struct {
	repo      booking.Repository
	settings  tenantconfig.SettingsSource
	catalog   booking.ServiceCatalog
	directory booking.Directory
	idem      storage.IdempotencyStore
	inbox     consumer.Inbox
	checks    []runtime.ReadyCheck
	workers   []func(context.Context)
	close     func()
}

func serve(cfg Config) error {
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var be backend
	switch cfg.Storage {
	case storageMemory:
		be, err = memoryBackend(ctx, cfg, logger)
	default:
		be, err = postgresBackend(ctx, cfg, logger)
	}
	if err != nil {
		return err
	}
	defer be.close()

	var rdb tenantconfig.RedisClient
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = redisClient.Close() }()
		rdb = redisClient
		be.checks = append(be.checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	settings := tenantconfig.NewCachedStore(be.settings, rdb, logger, tenantconfig.CacheConfig{
		Size: cfg.SettingsCacheSize,
		TTL:  cfg.SettingsCacheTTL,
	})
	manager := booking.NewManager(settings, be.catalog, be.repo, logger, booking.WithDirectory(be.directory))

	if len(cfg.KafkaBrokers) > 0 {
		be.checks = append(be.checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		group := cfg.consumerGroup()
		reader := consumer.NewReader(consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: group,
			Topic:   cfg.SettingsTopic,
		})
		c := consumer.New(logger, reader, be.inbox, group, consumer.SettingsInvalidation(settings, logger))
		be.workers = append(be.workers, c.Run)
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	api := http.NewServeMux()
	handlers.Register(api,
		handlers.NewBookingHandler(manager, be.idem, logger),
		handlers.NewSettingsHandler(settings, logger),
	)
	apiHandler := httpx.Chain(api,
		auth.RequireBearer(verifier),
		rateLimit(cfg, redisClient, logger),
	)

	mux := runtime.NewBaseMuxWithReady(be.checks...)
	mux.Handle("/api/", apiHandler)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range be.workers {
		g.Go(func() error {
			run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return runtime.ServeHTTP(gctx, srv, cfg.ShutdownGrace, logger)
	})
	g.Go(func() error {
		health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		logger.Info("grpc server listening", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()
		grpcSrv.GracefulStop()
		return nil
	})

	err = g.Wait()
	logger.Info("booking service stopped")
	return err
}

func postgresBackend(ctx context.Context, cfg Config, logger *slog.Logger) (backend, error) {
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return backend{}, fmt.Errorf("db connect: %w", err)
	}
	if cfg.MigrateOnStart {
		n, err := db.NewMigrator(pool, storage.Migrations()).Up(ctx)
		if err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "count", n)
	}
	if cfg.SeedFile != "" {
		fx, err := loadFixture(cfg.SeedFile)
		if err == nil {
			err = fx.ApplyPostgres(ctx, pool)
		}
		if err != nil {
			pool.Close()
			return backend{}, err
		}
	}

	outboxRepo := outbox.NewRepository()
	store := tenantconfig.NewPGStore(pool, outboxRepo)
	be := backend{
		repo:      storage.NewBookingRepository(pool, outboxRepo),
		settings:  store,
		catalog:   store,
		directory: store,
		idem:      storage.NewPGIdempotencyStore(pool, cfg.IdempotencyLease),
		inbox:     inbox.NewRepository(pool),
		checks:    []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		close:     pool.Close,
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkax.NewWriter(cfg.KafkaBrokers)
		publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		be.workers = append(be.workers, publisher.Run)
		be.close = func() {
			_ = writer.Close()
			pool.Close()
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}
	return be, nil
}

func memoryBackend(ctx context.Context, cfg Config, logger *slog.Logger) (backend, error) {
	store := tenantconfig.NewStaticStore()
	if cfg.SeedFile != "" {
		fx, err := loadFixture(cfg.SeedFile)
		if err != nil {
			return backend{}, err
		}
		if err := fx.ApplyMemory(ctx, store); err != nil {
			return backend{}, err
		}
		logger.Info("seed loaded", "tenants", len(fx.Tenants))
	}
	logger.Warn("running with in-memory storage; data is lost on restart")
	return backend{
		repo:      storage.NewMemoryRepository(),
		settings:  store,
		catalog:   store,
		directory: store,
		idem:      storage.NewMemoryIdempotencyStore(cfg.IdempotencyLease),
		inbox:     inbox.NewMemory(),
		close:     func() {},
	}, nil
}

func loadFixture(path string) (seed.Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return seed.Fixture{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	fx, err := seed.Load(f)
	if err != nil {
		return seed.Fixture{}, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

func newVerifier(cfg Config) (*auth.Verifier, error) {
	switch {
	case cfg.JWKSURL != "":
		return auth.NewJWKSVerifier(auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSTTL)), nil
	case cfg.JWTSecret != "":
		return auth.NewHS256Verifier(cfg.JWTSecret), nil
	default:
		return nil, errors.New("no token verifier configured")
	}
}

// rateLimit charges requests to the caller's tenant, or to the client IP
// when no principal is present. Redis gives a limit shared by replicas.
func rateLimit(cfg Config, rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	key := func(r *http.Request) string {
		if p, ok := auth.PrincipalFromContext(r.Context()); ok {
			return "tenant:" + strings.ToLower(p.TenantID)
		}
		return "ip:" + httpx.ClientIP(r)
	}
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.ServiceName+":rl", key)
		return rl.Middleware(logger, cfg.RateLimitFailOpen)
	}
	return httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, key).Middleware()
}
