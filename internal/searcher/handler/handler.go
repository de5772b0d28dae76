// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// SearchService is the subset of *search.Service the handler needs.
type SearchService interface {
	Execute(q search.Query) (*search.SearchResult, error)
	Generation() uint64
	Record(location string) (records.DocumentRecord, error)
	Status() search.Status
	Reload(ctx context.Context) error
}

type Config struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	service      SearchService
	cache        *cache.QueryCache
	collector    *analytics.Collector
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. queryCache and collector may be nil.
func New(svc SearchService, queryCache *cache.QueryCache, collector *analytics.Collector, cfg Config) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	return &Handler{
		service:      svc,
		cache:        queryCache,
		collector:    collector,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

type searchResponse struct {
	*search.SearchResult
	Generation uint64  `json:"generation"`
	CacheHit   bool    `json:"cache_hit"`
	LatencyMs  float64 `json:"latency_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	q := search.Query{
		Text:     params.Get("q"),
		Limit:    h.defaultLimit,
		Category: records.Category(params.Get("category")),
	}
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, apperrors.InvalidQuery("limit must be an integer, got %q", limitStr))
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		q.Limit = parsed
	}

	gen := h.service.Generation()
	var (
		result   *search.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil && gen > 0 {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, gen, q, func() (*search.SearchResult, error) {
			return h.service.Execute(q)
		})
	} else {
		result, err = h.service.Execute(q)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		log.Warn("search failed", "query", q.Text, "limit", q.Limit, "error", err)
		h.track(ctx, analytics.Event{
			Type:       analytics.EventSearchError,
			Query:      q.Text,
			Category:   string(q.Category),
			LatencyMs:  latency,
			Generation: gen,
			Error:      err.Error(),
		})
		h.writeError(w, err)
		return
	}

	log.Info("search completed",
		"query", q.Text,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency,
	)
	h.track(ctx, analytics.Event{
		Type:       analytics.EventSearch,
		Query:      q.Text,
		Terms:      result.Terms,
		Category:   string(q.Category),
		TotalHits:  result.TotalHits,
		Returned:   len(result.Results),
		LatencyMs:  latency,
		CacheHit:   cacheHit,
		Generation: gen,
	})

	h.writeJSON(w, http.StatusOK, searchResponse{
		SearchResult: result,
		Generation:   gen,
		CacheHit:     cacheHit,
		LatencyMs:    latency,
	})
}

func (h *Handler) track(ctx context.Context, e analytics.Event) {
	if h.collector == nil {
		return
	}
	e.Origin = "http"
	e.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(e)
}

// Record returns the record stored at ?location=.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		h.writeError(w, apperrors.InvalidQuery("query parameter 'location' is required"))
		return
	}
	rec, err := h.service.Record(location)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Status())
}

// Reload rebuilds the index from its source. On failure the previous index
// keeps serving and the error is reported to the caller.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if err := h.service.Reload(r.Context()); err != nil {
		log.Error("manual reload failed", "error", err)
		h.track(r.Context(), analytics.Event{
			Type:       analytics.EventReload,
			Generation: h.service.Generation(),
			Trigger:    "http",
			Error:      err.Error(),
		})
		h.writeError(w, err)
		return
	}
	st := h.service.Status()
	log.Info("manual reload completed", "generation", st.Generation)
	h.track(r.Context(), analytics.Event{
		Type:       analytics.EventReload,
		Generation: st.Generation,
		Records:    st.Stats.Records,
		Trigger:    "http",
	})
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err onto an HTTP status. Internal errors are not echoed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, apperrors.ErrInternal) {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
