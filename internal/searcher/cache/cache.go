// Package cache memoises search results per index generation. A local
// expiring LRU answers repeated queries in-process; an optional remote
// Backend (Redis) shares results between replicas. Concurrent misses for the
// same key are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "docsearch:"

// Backend is a shared byte store for encoded results.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context, prefix string) (int64, error)
}

type Config struct {
	LocalSize int
	TTL       time.Duration
}

type QueryCache struct {
	local   *expirable.LRU[string, *search.SearchResult]
	remote  Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. remote and m may be nil.
func New(cfg Config, remote Backend, m *metrics.Metrics) *QueryCache {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &QueryCache{
		local:   expirable.NewLRU[string, *search.SearchResult](cfg.LocalSize, nil, cfg.TTL),
		remote:  remote,
		ttl:     cfg.TTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks q up for index generation gen.
func (c *QueryCache) Get(ctx context.Context, gen uint64, q search.Query) (*search.SearchResult, bool) {
	key := buildKey(gen, q)
	if res, ok := c.lookup(ctx, key); ok {
		c.recordHit()
		return withQuery(res, q.Text), true
	}
	c.recordMiss()
	return nil, false
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*search.SearchResult, bool) {
	if res, ok := c.local.Get(key); ok {
		return res, true
	}
	if c.remote == nil {
		return nil, false
	}
	data, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("remote cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res search.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.local.Add(key, &res)
	return &res, true
}

// Set stores res for q under generation gen.
func (c *QueryCache) Set(ctx context.Context, gen uint64, q search.Query, res *search.SearchResult) {
	key := buildKey(gen, q)
	c.local.Add(key, res)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("remote cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for q or runs compute once for all
// concurrent callers. Errors are never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	gen uint64,
	q search.Query,
	compute func() (*search.SearchResult, error),
) (*search.SearchResult, bool, error) {
	if res, ok := c.Get(ctx, gen, q); ok {
		return res, true, nil
	}
	key := buildKey(gen, q)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.lookup(ctx, key); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, gen, q, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withQuery(val.(*search.SearchResult), q.Text), false, nil
}

// Invalidate drops every cached result, local and remote.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidated")
		return nil
	}
	deleted, err := c.remote.Flush(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "remote_keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// withQuery returns a shallow copy of res echoing the caller's raw query,
// since equivalent queries share one cache entry.
func withQuery(res *search.SearchResult, query string) *search.SearchResult {
	out := *res
	out.Query = query
	return &out
}

// buildKey normalises q so that queries with the same term set share an
// entry. Term order and duplicates do not affect results under OR
// semantics with deduplicated terms.
func buildKey(gen uint64, q search.Query) string {
	terms := tokenizer.UniqueTerms(q.Text)
	sort.Strings(terms)
	raw := fmt.Sprintf("gen=%d|%s|limit=%d|category=%s", gen, strings.Join(terms, ","), q.Limit, q.Category)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
