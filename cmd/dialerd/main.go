// Command dialerd runs the dialer core's HTTP API and its background TTL
// sweeper in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/surveypulse/dialer-core/internal/assignment"
	"github.com/surveypulse/dialer-core/internal/bank"
	"github.com/surveypulse/dialer-core/internal/clockid"
	"github.com/surveypulse/dialer-core/internal/config"
	"github.com/surveypulse/dialer-core/internal/dnc"
	"github.com/surveypulse/dialer-core/internal/events"
	"github.com/surveypulse/dialer-core/internal/httpapi"
	"github.com/surveypulse/dialer-core/internal/observability"
	"github.com/surveypulse/dialer-core/internal/pool"
	"github.com/surveypulse/dialer-core/internal/ratelimit"
	"github.com/surveypulse/dialer-core/internal/reservation"
	"github.com/surveypulse/dialer-core/internal/scheme"
	"github.com/surveypulse/dialer-core/internal/store/postgres"
	"github.com/surveypulse/dialer-core/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to set up tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	dbPool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbPool.Close()

	bankDSN := cfg.BankDBURL
	if bankDSN == "" {
		bankDSN = cfg.DBURL
	}
	bankPool, err := pgxpool.New(ctx, bankDSN)
	if err != nil {
		slog.Error("bank db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bankPool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis ping failed, caching and rate limiting will fail open", slog.Any("error", err))
		}
	}

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	if err != nil {
		slog.Error("kafka producer setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("failed to close kafka producer", slog.Any("error", err))
		}
	}()

	store := postgres.NewStore(dbPool)
	clock := clockid.SystemClock{}
	ids := clockid.NewULIDGenerator(clock)
	bankGateway := bank.NewPgxGateway(bankPool)

	resEngine := reservation.NewEngine(store, clock, ids, publisher)
	asgService := assignment.NewService(clock, publisher)
	schemeService := scheme.NewService(store, clock, ids)
	poolBuilder := pool.NewBuilder(store, bankGateway, clock, ids)
	sweeperService := sweeper.NewService(store, clock, publisher)

	dncCache := dnc.New(rdb, dnc.StoreSource{Store: store}, cfg.DNCCacheTTL)
	limiter := ratelimit.NewRedisLuaLimiter(rdb, cfg.RateLimitPerMin)

	dbCheck := func(ctx context.Context) error {
		return dbPool.Ping(ctx)
	}

	srv := httpapi.NewServer(logger, resEngine, asgService, schemeService, poolBuilder, limiter, store, dncCache, dbCheck)
	srv.RequestTimeout = cfg.HTTPWriteTimeout

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweeperService.RunPeriodic(sweepCtx, cfg.SweepInterval)

	handler := srv.BuildRouter(httpapi.ParseOrigins(cfg.CORSAllowOrigins), cfg.RateLimitPerMin)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
