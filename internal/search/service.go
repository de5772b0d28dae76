package search

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// generation is one published outcome of a reload: either a built engine or
// the error that prevented the first build.
type generation struct {
	engine  *Engine
	err     error
	number  uint64
	builtAt time.Time
}

// Status describes the currently published index.
type Status struct {
	Ready      bool        `json:"ready"`
	Generation uint64      `json:"generation"`
	Source     string      `json:"source"`
	BuiltAt    time.Time   `json:"built_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	Stats      index.Stats `json:"stats"`
}

// SwapFunc is called after a new index has been published.
type SwapFunc func(gen uint64, stats index.Stats)

// Service publishes the current index and answers queries against it.
// Readers never block on a reload: they load the published generation once
// and use it for the whole request.
type Service struct {
	source      records.Source
	scorer      Scorer
	buildOpts   []index.Option
	loadTimeout time.Duration
	retry       resilience.RetryConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger

	current  atomic.Pointer[generation]
	reloadMu sync.Mutex

	hooksMu sync.RWMutex
	onSwap  []SwapFunc
}

type ServiceOption func(*Service)

func WithScorer(s Scorer) ServiceOption {
	return func(svc *Service) { svc.scorer = s }
}

func WithBuildOptions(opts ...index.Option) ServiceOption {
	return func(svc *Service) { svc.buildOpts = append(svc.buildOpts, opts...) }
}

// WithLoadTimeout bounds each load of the record source.
func WithLoadTimeout(d time.Duration) ServiceOption {
	return func(svc *Service) { svc.loadTimeout = d }
}

// WithRetry retries failed loads with backoff. Malformed records and
// undecodable payloads are never retried.
func WithRetry(cfg resilience.RetryConfig) ServiceOption {
	return func(svc *Service) { svc.retry = cfg }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(svc *Service) { svc.metrics = m }
}

func NewService(source records.Source, opts ...ServiceOption) *Service {
	svc := &Service{
		source: source,
		scorer: TermFrequency{},
		retry:  resilience.RetryConfig{MaxAttempts: 1},
		logger: slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// OnSwap registers fn to run after each successful publish.
func (s *Service) OnSwap(fn SwapFunc) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onSwap = append(s.onSwap, fn)
}

// Reload loads the source, builds a fresh index and publishes it. If the
// build fails and a previous index exists, the previous index stays
// published. If no index was ever built, the failure itself is published so
// that queries report it.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "index.reload", uuid.NewString())
	defer span.Log(s.logger)

	start := time.Now()
	idx, err := s.build(ctx)
	s.observeRebuild(start, err)
	span.End(err)

	prev := s.current.Load()
	var next uint64 = 1
	if prev != nil {
		next = prev.number + 1
	}

	if err != nil {
		if prev != nil && prev.engine != nil {
			s.logger.Error("index rebuild failed, keeping previous index",
				"source", s.source.Name(),
				"generation", prev.number,
				"error", err,
			)
			return err
		}
		s.current.Store(&generation{err: err, number: next})
		s.logger.Error("index build failed", "source", s.source.Name(), "error", err)
		return err
	}

	gen := &generation{
		engine:  NewEngine(idx, s.scorer),
		number:  next,
		builtAt: idx.BuiltAt(),
	}
	s.current.Store(gen)

	stats := idx.Stats()
	if s.metrics != nil {
		s.metrics.IndexedRecords.Set(float64(stats.Records))
		s.metrics.IndexedTerms.Set(float64(stats.Terms))
		s.metrics.IndexGeneration.Set(float64(next))
	}
	s.logger.Info("index published",
		"source", s.source.Name(),
		"generation", next,
		"records", stats.Records,
		"terms", stats.Terms,
		"duration", time.Since(start),
	)

	s.hooksMu.RLock()
	hooks := append([]SwapFunc(nil), s.onSwap...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(next, stats)
	}
	return nil
}

func (s *Service) build(ctx context.Context) (*index.InvertedIndex, error) {
	loadCtx, loadSpan := tracing.StartChildSpan(ctx, "records.load")
	loadSpan.SetAttr("source", s.source.Name())
	// A timed-out attempt may still finish in the background, so the result
	// is handed over atomically.
	var loaded atomic.Pointer[[]records.DocumentRecord]
	err := resilience.Retry(loadCtx, "load "+s.source.Name(), s.retry, func() error {
		return resilience.WithTimeout(loadCtx, s.loadTimeout, "load "+s.source.Name(), func(ctx context.Context) error {
			recs, err := records.Load(ctx, s.source)
			if err != nil {
				if records.IsPermanent(err) {
					return resilience.Permanent(err)
				}
				return err
			}
			loaded.Store(&recs)
			return nil
		})
	})
	loadSpan.End(err)
	if err != nil {
		return nil, err
	}
	recs := *loaded.Load()
	loadSpan.SetAttr("records", len(recs))

	_, buildSpan := tracing.StartChildSpan(ctx, "index.build")
	idx, err := index.Build(recs, s.buildOpts...)
	if err == nil {
		buildSpan.SetAttr("terms", idx.Stats().Terms)
	}
	buildSpan.End(err)
	return idx, err
}

func (s *Service) observeRebuild(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.IndexRebuildsTotal.WithLabelValues(status).Inc()
}

// Engine returns the published engine, or the error that explains why there
// is none.
func (s *Service) Engine() (*Engine, uint64, error) {
	gen := s.current.Load()
	if gen == nil {
		return nil, 0, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index has not been built yet")
	}
	if gen.engine == nil {
		return nil, gen.number, gen.err
	}
	return gen.engine, gen.number, nil
}

// Generation returns the number of the published generation, or zero before
// the first reload.
func (s *Service) Generation() uint64 {
	if gen := s.current.Load(); gen != nil {
		return gen.number
	}
	return 0
}

// Search runs query against the published index.
func (s *Service) Search(query string, limit int) ([]Result, error) {
	res, err := s.Execute(Query{Text: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

// Execute runs q against the published index and records query metrics.
func (s *Service) Execute(q Query) (*SearchResult, error) {
	start := time.Now()
	engine, _, err := s.Engine()
	if err == nil {
		var res *SearchResult
		res, err = engine.Execute(q)
		if err == nil {
			s.observeQuery(start, len(res.Results), nil)
			return res, nil
		}
	}
	s.observeQuery(start, 0, err)
	return nil, err
}

func (s *Service) observeQuery(start time.Time, results int, err error) {
	if s.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case results == 0:
		resultType = "zero_result"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if err == nil {
		s.metrics.SearchLatency.WithLabelValues("uncached").Observe(time.Since(start).Seconds())
		s.metrics.SearchResultsCount.Observe(float64(results))
	}
}

// Record looks up a record by location in the published index.
func (s *Service) Record(location string) (records.DocumentRecord, error) {
	engine, _, err := s.Engine()
	if err != nil {
		return records.DocumentRecord{}, err
	}
	rec, ok := engine.Index().Store().Get(location)
	if !ok {
		return records.DocumentRecord{}, apperrors.Newf(apperrors.ErrRecordNotFound, http.StatusNotFound,
			"no record at location %q", location)
	}
	return rec, nil
}

func (s *Service) Status() Status {
	st := Status{Source: s.source.Name()}
	gen := s.current.Load()
	if gen == nil {
		st.Error = apperrors.ErrIndexNotReady.Error()
		return st
	}
	st.Generation = gen.number
	if gen.engine == nil {
		st.Error = gen.err.Error()
		return st
	}
	st.Ready = true
	st.BuiltAt = gen.builtAt
	st.Stats = gen.engine.Index().Stats()
	return st
}
