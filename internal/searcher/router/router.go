// Package router wires up the docsearch HTTP routes and applies the
// middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
)

type Deps struct {
	Search    *handler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	RateLimit int
	Timeout   time.Duration
	Origins   []string
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search                 keyword search
//	GET    /api/v1/records                record lookup by location
//	GET    /api/v1/index                  published index status
//	POST   /api/v1/index/reload           rebuild and swap the index
//	GET    /api/v1/cache/stats            result cache counters
//	POST   /api/v1/cache/invalidate       drop cached results
//	GET    /api/v1/analytics              live query analytics
//	GET    /api/v1/analytics/snapshots    persisted analytics snapshots
//	GET    /health/live, /health/ready    probes
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → RateLimit → Timeout → mux
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())

	mux.HandleFunc("GET /api/v1/search", d.Search.Search)
	mux.HandleFunc("GET /api/v1/records", d.Search.Record)
	mux.HandleFunc("GET /api/v1/index", d.Search.IndexStatus)
	mux.HandleFunc("POST /api/v1/index/reload", d.Search.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", d.Search.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", d.Search.CacheInvalidate)

	if d.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", d.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", d.Analytics.Snapshots)
	}

	var chain http.Handler = mux
	if d.Timeout > 0 {
		chain = middleware.Timeout(d.Timeout)(chain)
	}
	if d.Limiter != nil && d.RateLimit > 0 {
		chain = middleware.RateLimit(d.Limiter, d.RateLimit)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(d.Origins))(chain)
	if d.Metrics != nil {
		chain = middleware.Metrics(d.Metrics)(chain)
	}
	chain = middleware.RequestID(chain)

	return chain
}
