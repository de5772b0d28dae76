package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/data"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/sqlite"
)

// openSource resolves the configured record source. A multi source opens
// every member and merges them in config order. The returned close function
// releases any database handles the sources hold.
func openSource(cfg *config.Config) (records.Source, func(), error) {
	specs := cfg.RecordSources()
	if cfg.Records.Source != config.SourceMulti {
		return openSpec(cfg, specs[0])
	}
	var (
		multi   records.MultiSource
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for i, spec := range specs {
		src, closeSrc, err := openSpec(cfg, spec)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("records.sources[%d]: %w", i, err)
		}
		multi = append(multi, src)
		closers = append(closers, closeSrc)
	}
	return multi, closeAll, nil
}

func openSpec(cfg *config.Config, spec config.SourceSpec) (records.Source, func(), error) {
	noop := func() {}
	switch spec.Source {
	case config.SourceEmbedded:
		return records.BytesSource{Label: "embedded", Data: data.SearchIndex}, noop, nil
	case config.SourceFile:
		return records.FileSource{Path: spec.Path}, noop, nil
	case config.SourceURL:
		return records.URLSource{
			URL:    spec.URL,
			Client: &http.Client{Timeout: cfg.Records.FetchTimeout},
		}, noop, nil
	case config.SourcePostgres:
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		src := records.SQLSource{Label: "postgres:" + cfg.Postgres.Database, DB: pg.DB, Query: cfg.Records.Query}
		return src, func() { _ = pg.Close() }, nil
	case config.SourceSQLite:
		db, err := sqlite.Open(spec.Path)
		if err != nil {
			return nil, noop, err
		}
		src := records.SQLSource{Label: "sqlite:" + spec.Path, DB: db.DB, Query: cfg.Records.Query}
		return src, func() { _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown records source %q", spec.Source)
	}
}

// newService builds a search service over src from the search and records
// config. m may be nil.
func newService(cfg *config.Config, src records.Source, m *metrics.Metrics) (*search.Service, error) {
	scorer, err := search.NewScorer(cfg.Search.Scorer, cfg.Search.TitleBoost)
	if err != nil {
		return nil, fmt.Errorf("search.scorer: %w", err)
	}
	opts := []search.ServiceOption{
		search.WithScorer(scorer),
		search.WithLoadTimeout(cfg.Records.FetchTimeout),
		search.WithRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.Records.LoadAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		}),
	}
	if cfg.Records.StrictEmpty {
		opts = append(opts, search.WithBuildOptions(index.WithStrictEmpty()))
	}
	if m != nil {
		opts = append(opts, search.WithMetrics(m))
	}
	return search.NewService(src, opts...), nil
}

// buildOnce opens the configured source and builds the index once, for
// the commands that do not serve.
func buildOnce(ctx context.Context, cfg *config.Config) (*search.Service, func(), error) {
	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return nil, closeSrc, err
	}
	svc, err := newService(cfg, src, nil)
	if err != nil {
		return nil, closeSrc, err
	}
	if err := svc.Reload(ctx); err != nil {
		return nil, closeSrc, err
	}
	return svc, closeSrc, nil
}
