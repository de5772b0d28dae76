// Package analytics collects search and reload events, ships them to Kafka
// and aggregates them into the statistics served at /api/v1/analytics.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	lru "github.com/hashicorp/golang-lru/v2"
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	CacheHitRate      float64      `json:"cache_hit_rate"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	ErrorCount        int64        `json:"error_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Reloads           int64        `json:"reloads"`
	FailedReloads     int64        `json:"failed_reloads"`
	IndexGeneration   uint64       `json:"index_generation"`
	CapturedAt        time.Time    `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type AggregatorConfig struct {
	// LatencyWindow is the number of most recent latencies kept for
	// percentiles.
	LatencyWindow int
	// TrackedQueries bounds the distinct queries and terms counted; the
	// least recently seen are evicted first.
	TrackedQueries int
	TopN           int
}

// Aggregator folds events into running statistics. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	errors            int64
	reloads           int64
	failedReloads     int64
	generation        uint64
	latencySum        float64
	latencies         []float64
	latencyNext       int
	latencyWindow     int
	queryCounts       *lru.Cache[string, int64]
	termCounts        *lru.Cache[string, int64]
	zeroResultQueries *lru.Cache[string, int64]
	topN              int
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = 10000
	}
	if cfg.TrackedQueries <= 0 {
		cfg.TrackedQueries = 5000
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	queries, _ := lru.New[string, int64](cfg.TrackedQueries)
	terms, _ := lru.New[string, int64](cfg.TrackedQueries)
	zero, _ := lru.New[string, int64](cfg.TrackedQueries)
	return &Aggregator{
		latencies:         make([]float64, 0, cfg.LatencyWindow),
		latencyWindow:     cfg.LatencyWindow,
		queryCounts:       queries,
		termCounts:        terms,
		zeroResultQueries: zero,
		topN:              cfg.TopN,
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage is a kafka.MessageHandler feeding the aggregator from the
// analytics topic. Undecodable messages are logged and skipped.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e.Type {
	case EventSearch:
		a.recordSearch(e)
	case EventSearchError:
		a.totalSearches++
		a.errors++
	case EventReload:
		if e.Error != "" {
			a.failedReloads++
			return
		}
		a.reloads++
		if e.Generation > a.generation {
			a.generation = e.Generation
		}
	default:
		a.logger.Debug("ignoring unknown analytics event", "type", e.Type)
	}
}

func (a *Aggregator) recordSearch(e Event) {
	a.totalSearches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.observeLatency(e.LatencyMs)

	query := normalizeQuery(e.Query)
	increment(a.queryCounts, query)
	for _, term := range e.Terms {
		increment(a.termCounts, term)
	}
	if e.TotalHits == 0 {
		a.zeroResults++
		increment(a.zeroResultQueries, query)
	}
}

func (a *Aggregator) observeLatency(ms float64) {
	a.latencySum += ms
	if len(a.latencies) < a.latencyWindow {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencySum -= a.latencies[a.latencyNext]
	a.latencies[a.latencyNext] = ms
	a.latencyNext = (a.latencyNext + 1) % a.latencyWindow
}

func increment(c *lru.Cache[string, int64], key string) {
	if key == "" {
		return
	}
	n, _ := c.Get(key)
	c.Add(key, n+1)
}

// Restore seeds the running totals from a persisted snapshot so counters
// survive a restart. Query rankings and latencies start fresh.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += s.TotalSearches
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.zeroResults += s.ZeroResultCount
	a.errors += s.ErrorCount
	a.reloads += s.Reloads
	a.failedReloads += s.FailedReloads
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		ErrorCount:      a.errors,
		Reloads:         a.reloads,
		FailedReloads:   a.failedReloads,
		IndexGeneration: a.generation,
		CapturedAt:      now.UTC(),
	}
	if lookups := a.cacheHits + a.cacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(a.cacheHits) / float64(lookups)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		stats.AvgLatencyMs = a.latencySum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopTerms = topN(a.termCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	elapsed := now.Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts *lru.Cache[string, int64], n int) []QueryCount {
	keys := counts.Keys()
	result := make([]QueryCount, 0, len(keys))
	for _, key := range keys {
		if count, ok := counts.Peek(key); ok {
			result = append(result, QueryCount{Query: key, Count: count})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
