package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
)

var queries = []struct {
	name  string
	query string
}{
	{"single_term", "cut"},
	{"two_terms", "forward pass"},
	{"many_terms", "stochastic dual dynamic programming policy graph convergence"},
	{"miss", "nonexistent"},
}

func buildEngine(b *testing.B, n int, scorer search.Scorer) *search.Engine {
	b.Helper()
	idx, err := index.Build(syntheticCorpus(n))
	if err != nil {
		b.Fatal(err)
	}
	return search.NewEngine(idx, scorer)
}

func BenchmarkSearch(b *testing.B) {
	engine := buildEngine(b, 5000, nil)
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Search(q.query, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkScorers(b *testing.B) {
	scorers := map[string]search.Scorer{
		"tf":       search.TermFrequency{},
		"weighted": search.FieldWeighted{TitleBoost: 2},
		"bm25":     search.BM25{},
	}
	for name, scorer := range scorers {
		engine := buildEngine(b, 5000, scorer)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = engine.Search("forward pass cut", 10)
			}
		})
	}
}

func BenchmarkSearchCorpusSize(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		engine := buildEngine(b, n, nil)
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = engine.Search("stochastic programming", 10)
			}
		})
	}
}

func BenchmarkServiceSearchParallel(b *testing.B) {
	svc := search.NewService(records.StaticSource(syntheticCorpus(5000)))
	if err := svc.Reload(context.Background()); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = svc.Search("dynamic programming", 10)
		}
	})
}

func BenchmarkCachedSearch(b *testing.B) {
	svc := search.NewService(records.StaticSource(syntheticCorpus(5000)))
	if err := svc.Reload(context.Background()); err != nil {
		b.Fatal(err)
	}
	qc := cache.New(cache.Config{LocalSize: 1024}, nil, nil)
	q := search.Query{Text: "dynamic programming", Limit: 10}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, err := qc.GetOrCompute(ctx, svc.Generation(), q, func() (*search.SearchResult, error) {
			return svc.Execute(q)
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
