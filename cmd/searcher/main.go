package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/consumer"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"preset", cfg.Bloom.Preset,
		"capacity", cfg.Bloom.Capacity,
		"fp_rate", cfg.Bloom.FalsePositiveRate,
		"ngram_size", cfg.Bloom.NGramSize,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := store.New(cfg.Bloom, store.WithLogger(logger.WithComponent("store")))
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	engine := query.New(st, query.WithMemoizeNegatives(cfg.Search.MemoizeNegatives))
	ix := ingestion.NewIndexer(st, validator.Limits{
		MaxBatchSize:  cfg.Search.MaxBatchSize,
		MaxTextLength: cfg.Search.MaxTextLength,
		MaxIDLength:   cfg.Search.MaxIDLength,
	}, m)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("store", func(context.Context) health.ComponentHealth {
		s := st.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", s.Generation, s.Documents),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     15 * time.Second,
			})
			queryCache = cache.New(cache.Guard(redisClient, breaker, 200*time.Millisecond), cfg.Redis.CacheTTL)
			if err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("flushing stale cache entries failed", "error", err)
			}
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp, Message: "circuit " + breaker.State().String()}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{
			MaxAttempts:  8,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		n, err := loader.New(db, ix, cfg.Postgres.LoadQuery, cfg.Postgres.BatchSize).Load(ctx)
		closeErr := db.Close()
		if err != nil {
			return fmt.Errorf("loading documents after %d rows: %w", n, err)
		}
		if closeErr != nil {
			slog.Warn("closing postgres", "error", closeErr)
		}
	}

	h := handler.New(st, engine, ix, queryCache, m, cfg.Search.MaxQueryLength)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	var limiter *middleware.WriteLimiter
	if cfg.Server.WriteRatePerSecond > 0 {
		limiter = middleware.NewWriteLimiter(cfg.Server.WriteRatePerSecond, cfg.Server.WriteBurst, 10*time.Minute)
		chain = middleware.RateLimit(limiter, cfg.Server.TrustForwardedFor)(chain)
		slog.Info("write rate limit enabled",
			"per_second", cfg.Server.WriteRatePerSecond,
			"burst", cfg.Server.WriteBurst,
			"trust_forwarded_for", cfg.Server.TrustForwardedFor,
		)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Port, reg, cfg.Server.ShutdownTimeout)
		})
	}

	if cfg.Kafka.Enabled {
		docConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents, consumer.New(ix).Handle)
		g.Go(func() error {
			defer docConsumer.Close()
			return docConsumer.Start(gctx)
		})
		slog.Info("document consumer started", "topic", cfg.Kafka.Topics.Documents, "group", cfg.Kafka.ConsumerGroup)
	}

	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := limiter.Sweep(); n > 0 {
						slog.Debug("idle rate limit buckets dropped", "count", n)
					}
				}
			}
		})
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
