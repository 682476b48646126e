package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/invalidation"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/titles"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to table store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loaded, err := loader.Load(ctx, cfg.Index, cfg.Database, db, m)
	if err != nil {
		slog.Error("failed to load search resources", "error", err)
		os.Exit(1)
	}
	defer loaded.Close()

	missing, err := titles.ParseMissingPolicy(cfg.Search.MissingTitlePolicy)
	if err != nil {
		slog.Error("invalid missing title policy", "error", err)
		os.Exit(1)
	}
	exec, err := executor.New(loaded.Resources, executor.Options{
		Policy:               cfg.Search.MergePolicy(),
		TopK:                 cfg.Search.TopK,
		QueryTimeout:         cfg.Search.QueryTimeout,
		BoostOncePerDocument: !cfg.Search.AuthorityBoostPerOccurrence,
		Tokenizer:            tokenizer.New(cfg.Search.ExtraStopwords...),
		MissingTitles:        missing,
		MissingPlaceholder:   cfg.Search.MissingTitlePlaceholder,
		Metrics:              m,
	})
	if err != nil {
		slog.Error("failed to create executor", "error", err)
		os.Exit(1)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, exec.Fingerprint(), m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
				"fingerprint", exec.Fingerprint(),
			)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
	}
	collector := analytics.NewCollector(publisher, analytics.CollectorOptions{
		Aggregator: aggregator,
		Metrics:    m,
	})
	collector.Start(ctx)
	defer collector.Close()

	if cfg.Kafka.Enabled && queryCache != nil {
		consumer := invalidation.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, invalidation.HandleMessage(queryCache)))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker(5 * time.Second)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		for _, cb := range loaded.Breakers {
			if cb.GetState() == resilience.StateOpen {
				return health.ComponentHealth{Status: health.StatusDown, Message: cb.Name() + " circuit open"}
			}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d title docs, %d body docs", loaded.Title.DocumentCount(), loaded.Body.DocumentCount()),
		}
	})
	checker.Register("database", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			// Tables are already in memory; queries keep working.
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		pool := redisClient.PoolStats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d/%d idle connections", pool.IdleConns, pool.TotalConns),
		}
	})

	slog.Info("health checks registered", "checks", checker.Names())

	h := handler.New(exec, queryCache, collector, m)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h.Routes(analytics.NewHandler(aggregator), checker, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
