package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
)

// memBackend is an in-memory Backend used to exercise the remote path.
type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	fail bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.fail {
		return nil, false, errors.New("backend down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("backend down")
	}
	m.data[key] = value
	return nil
}

func (m *memBackend) Flush(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult(query string) *search.SearchResult {
	return &search.SearchResult{
		Query:     query,
		Terms:     []string{"planning"},
		TotalHits: 1,
		Results: []search.Result{{
			DocumentRecord: records.DocumentRecord{Location: "a", Page: "Quick Start", Title: "Quick Start", Category: records.CategoryPage},
			Score:          1,
		}},
		TermStats: map[string]int{"planning": 1},
	}
}

func TestGetOrComputeCachesPerGeneration(t *testing.T) {
	c := New(Config{LocalSize: 16, TTL: time.Minute}, nil, nil)
	ctx := context.Background()
	q := search.Query{Text: "planning", Limit: 10}

	var computes int
	compute := func() (*search.SearchResult, error) {
		computes++
		return sampleResult("planning"), nil
	}

	if _, hit, err := c.GetOrCompute(ctx, 1, q, compute); err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	if _, hit, _ := c.GetOrCompute(ctx, 1, q, compute); !hit {
		t.Error("second call should hit")
	}
	if _, hit, _ := c.GetOrCompute(ctx, 2, q, compute); hit {
		t.Error("new generation must not reuse old entries")
	}
	if computes != 2 {
		t.Errorf("computes = %d, want 2", computes)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("stats = %d/%d, want 1/2", hits, misses)
	}
}

func TestEquivalentQueriesShareEntry(t *testing.T) {
	c := New(Config{}, nil, nil)
	ctx := context.Background()
	c.Set(ctx, 1, search.Query{Text: "hydro thermal", Limit: 5}, sampleResult("hydro thermal"))

	res, ok := c.Get(ctx, 1, search.Query{Text: "THERMAL, hydro hydro", Limit: 5})
	if !ok {
		t.Fatal("expected hit for an equivalent query")
	}
	if res.Query != "THERMAL, hydro hydro" {
		t.Errorf("cached result should echo the caller's query, got %q", res.Query)
	}
	if _, ok := c.Get(ctx, 1, search.Query{Text: "hydro thermal", Limit: 6}); ok {
		t.Error("different limit must miss")
	}
	if _, ok := c.Get(ctx, 1, search.Query{Text: "hydro thermal", Limit: 5, Category: records.CategoryType}); ok {
		t.Error("different category must miss")
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(Config{}, nil, nil)
	boom := errors.New("index not ready")
	_, _, err := c.GetOrCompute(context.Background(), 1, search.Query{Text: "x y", Limit: 1}, func() (*search.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), 1, search.Query{Text: "x y", Limit: 1}); ok {
		t.Error("error result was cached")
	}
}

func TestSingleflightCollapsesConcurrentMisses(t *testing.T) {
	c := New(Config{}, nil, nil)
	var computes atomic.Int32
	release := make(chan struct{})
	compute := func() (*search.SearchResult, error) {
		computes.Add(1)
		<-release
		return sampleResult("planning"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), 1, search.Query{Text: "planning", Limit: 3}, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := computes.Load(); n != 1 {
		t.Errorf("computes = %d, want 1", n)
	}
}

func TestRemoteBackendSharesResults(t *testing.T) {
	remote := newMemBackend()
	ctx := context.Background()
	q := search.Query{Text: "planning", Limit: 10}

	writer := New(Config{}, remote, nil)
	writer.Set(ctx, 3, q, sampleResult("planning"))

	reader := New(Config{}, remote, nil)
	res, ok := reader.Get(ctx, 3, q)
	if !ok || len(res.Results) != 1 || res.Results[0].Location != "a" {
		t.Fatalf("remote lookup = %+v, %v", res, ok)
	}
	gets := remote.gets
	if _, ok := reader.Get(ctx, 3, q); !ok || remote.gets != gets {
		t.Error("second lookup should be served from the local LRU")
	}

	if err := writer.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if len(remote.data) != 0 {
		t.Errorf("remote still holds %d keys", len(remote.data))
	}
	if _, ok := writer.Get(ctx, 3, q); ok {
		t.Error("local entry survived invalidation")
	}
}

func TestRemoteFailureFallsBackToCompute(t *testing.T) {
	remote := newMemBackend()
	remote.fail = true
	c := New(Config{}, remote, nil)
	res, hit, err := c.GetOrCompute(context.Background(), 1, search.Query{Text: "planning", Limit: 1}, func() (*search.SearchResult, error) {
		return sampleResult("planning"), nil
	})
	if err != nil || hit || res.TotalHits != 1 {
		t.Errorf("got %+v hit=%v err=%v", res, hit, err)
	}
}
