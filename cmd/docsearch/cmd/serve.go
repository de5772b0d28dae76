package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/reload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

func newServeCmd(g *globals) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				g.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), g.cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting docsearch", "version", Version, "port", cfg.Server.Port, "source", cfg.Records.Source)

	m := metrics.New(nil)

	src, closeSrc, err := openSource(cfg)
	defer closeSrc()
	if err != nil {
		return fmt.Errorf("opening record source: %w", err)
	}
	svc, err := newService(cfg, src, m)
	if err != nil {
		return err
	}

	var remote cache.Backend
	var redisClient *pkgredis.Client
	var redisBreaker *resilience.CircuitBreaker
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using local result cache only", "error", err)
		} else {
			defer redisClient.Close()
			redisBreaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			})
			remote = cache.NewRedisBackend(redisClient, redisBreaker)
			slog.Info("shared result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(cache.Config{LocalSize: cfg.Redis.LocalSize, TTL: cfg.Redis.CacheTTL}, remote, m)
	svc.OnSwap(func(gen uint64, _ index.Stats) {
		if err := queryCache.Invalidate(context.Background()); err != nil {
			slog.Warn("result cache invalidation failed", "generation", gen, "error", err)
		}
	})

	var pg *postgres.Client
	if cfg.Analytics.Enabled {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
		}
	}
	collector, analyticsHandler, stopAnalytics := startAnalytics(ctx, cfg, pg, m)
	defer stopAnalytics()

	observe := func(trigger string, err error) {
		if collector == nil {
			return
		}
		e := analytics.Event{
			Type:       analytics.EventReload,
			Generation: svc.Generation(),
			Trigger:    trigger,
			Timestamp:  time.Now().UTC(),
		}
		if err != nil {
			e.Error = err.Error()
		} else {
			e.Records = svc.Status().Stats.Records
		}
		collector.Track(e)
	}

	err = svc.Reload(ctx)
	if err != nil {
		slog.Error("initial index build failed; queries will report it until a reload succeeds", "error", err)
	}
	observe("startup", err)
	startReloadTriggers(ctx, cfg, svc, observe)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		st := svc.Status()
		if !st.Ready {
			return health.ComponentHealth{Status: health.StatusDown, Message: st.Error}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d records", st.Generation, st.Stats.Records),
		}
	})
	if redisClient != nil {
		ping := health.PingCheck(redisClient.Ping, health.StatusDegraded)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if state := redisBreaker.GetState(); state != resilience.StateClosed {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "result cache circuit " + state.String()}
			}
			return ping(ctx)
		})
	}
	if pg != nil {
		checker.Register("postgres", health.PingCheck(pg.Ping, health.StatusDegraded))
	}

	limiter := ratelimit.New(time.Minute)
	defer limiter.Close()

	h := handler.New(svc, queryCache, collector, handler.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(router.Deps{
			Search:    h,
			Analytics: analyticsHandler,
			Health:    checker,
			Metrics:   m,
			Limiter:   limiter,
			RateLimit: cfg.Server.RateLimit,
			Timeout:   cfg.Server.RequestTimeout,
			Origins:   cfg.Server.AllowedOrigins,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
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

	slog.Info("docsearch listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("docsearch stopped")
	return nil
}

// startAnalytics wires the collector and aggregator. With Kafka enabled,
// events go out through the producer and the aggregator is fed by a
// consumer on the same topic; otherwise the collector feeds the aggregator
// directly. pg may be nil, which disables snapshots. The returned stop
// function flushes the collector before closing the producer.
func startAnalytics(ctx context.Context, cfg *config.Config, pg *postgres.Client, m *metrics.Metrics) (
	*analytics.Collector,
	*analytics.Handler,
	func(),
) {
	if !cfg.Analytics.Enabled {
		return nil, nil, func() {}
	}
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})

	var snapshots analytics.SnapshotLister
	if pg != nil {
		store := aggregator.NewStore(pg)
		if latest, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	}

	var publisher analytics.Publisher
	var producer *kafka.Producer
	local := agg
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		publisher = producer
		local = nil

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "", agg.HandleMessage())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
	}

	collector := analytics.NewCollector(publisher, local, analytics.CollectorConfig{
		BufferSize: cfg.Analytics.BufferSize,
	}, m)
	collector.Start(ctx)
	stop := func() {
		collector.Close()
		if producer != nil {
			_ = producer.Close()
		}
	}
	return collector, analytics.NewHandler(agg, snapshots), stop
}

// startReloadTriggers starts the file watcher for file sources and the
// docs-updated consumer when Kafka is enabled. Every instance reloads on
// every update, so the consumer group is per host.
func startReloadTriggers(ctx context.Context, cfg *config.Config, svc *search.Service, observe reload.Observer) {
	if cfg.Watch.Enabled {
		for _, spec := range cfg.RecordSources() {
			if spec.Source != config.SourceFile {
				continue
			}
			w := reload.NewFileWatcher(spec.Path, cfg.Watch.Debounce, svc, observe)
			go func() {
				if err := w.Run(ctx); err != nil {
					slog.Error("records file watcher stopped", "path", spec.Path, "error", err)
				}
			}()
		}
	}
	if cfg.Kafka.Enabled && cfg.Kafka.Topics.DocsUpdated != "" {
		host, _ := os.Hostname()
		group := cfg.Kafka.ConsumerGroup + "-reload-" + host
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocsUpdated, group, reload.KafkaHandler(svc, observe))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("docs-updated consumer stopped", "error", err)
			}
		}()
	}
}
