// Package loadtest drives concurrent search traffic against a running
// docsearch service and summarises latency, status codes and cache hits.
package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueries are representative queries against the built-in index.
var DefaultQueries = []string{
	"sddp",
	"stochastic program",
	"cuts",
	"hydro thermal scheduling",
	"forward pass",
	"backward pass",
	"stopping criterion",
	"production planning",
	"lower bound",
	"num stages",
	"tutorial",
	"solver",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type Report struct {
	Total       int64
	Success     int64
	Errors      int64
	CacheHits   int64
	Duration    time.Duration
	Latencies   []time.Duration
	StatusCodes map[int]int64
}

type recorder struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func (r *recorder) record(d time.Duration, status int, cacheHit bool, err error) {
	r.total.Add(1)
	if err != nil {
		r.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		r.success.Add(1)
	} else {
		r.errors.Add(1)
	}
	if cacheHit {
		r.cacheHits.Add(1)
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.codes[status]++
	r.mu.Unlock()
}

// Run sends searches from cfg.Concurrency workers until cfg.Duration
// elapses or ctx is cancelled. Each worker starts at a different query and
// cycles through the list.
func Run(ctx context.Context, cfg Config, client *http.Client) (*Report, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = DefaultQueries
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency * 2,
				MaxIdleConnsPerHost: cfg.Concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	rec := &recorder{codes: make(map[int]int64)}
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.Queries[next%len(cfg.Queries)]
				next++
				d, status, hit, err := search(ctx, client, cfg.BaseURL, query, cfg.Limit)
				if ctx.Err() != nil {
					return
				}
				rec.record(d, status, hit, err)
			}
		}(w)
	}
	wg.Wait()

	sort.Slice(rec.latencies, func(i, j int) bool { return rec.latencies[i] < rec.latencies[j] })
	return &Report{
		Total:       rec.total.Load(),
		Success:     rec.success.Load(),
		Errors:      rec.errors.Load(),
		CacheHits:   rec.cacheHits.Load(),
		Duration:    time.Since(start),
		Latencies:   rec.latencies,
		StatusCodes: rec.codes,
	}, nil
}

func search(ctx context.Context, client *http.Client, baseURL, query string, limit int) (time.Duration, int, bool, error) {
	u := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, false, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, false, err
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return time.Since(start), resp.StatusCode, body.CacheHit, nil
}

// Percentile returns the p-th percentile of the recorded latencies.
func (r *Report) Percentile(p float64) time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(r.Latencies)))) - 1
	idx = max(0, min(idx, len(r.Latencies)-1))
	return r.Latencies[idx]
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(r.Errors)/float64(r.Total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(r.CacheHits)/float64(r.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(r.Total)/r.Duration.Seconds())
	}

	if n := len(r.Latencies); n > 0 {
		var sum time.Duration
		for _, l := range r.Latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(n))
		fmt.Fprintf(w, "P50:    %s\n", r.Percentile(50))
		fmt.Fprintf(w, "P90:    %s\n", r.Percentile(90))
		fmt.Fprintf(w, "P99:    %s\n", r.Percentile(99))
		fmt.Fprintf(w, "Max:    %s\n", r.Latencies[n-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
}
