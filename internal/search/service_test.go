package search

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// switchSource serves whichever corpus or error was set last.
type switchSource struct {
	mu    sync.Mutex
	recs  []records.DocumentRecord
	err   error
	loads int
}

func (s *switchSource) Name() string { return "switch" }

func (s *switchSource) Load(ctx context.Context) ([]records.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return append([]records.DocumentRecord(nil), s.recs...), nil
}

func (s *switchSource) set(recs []records.DocumentRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs, s.err = recs, err
}

func TestServiceBeforeFirstReload(t *testing.T) {
	svc := NewService(records.StaticSource(exampleCorpus()))
	_, err := svc.Search("planning", 10)
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Fatalf("got %v, want ErrIndexNotReady", err)
	}
	if svc.Generation() != 0 || svc.Status().Ready {
		t.Errorf("unexpected status before reload: %+v", svc.Status())
	}
}

func TestServiceReloadAndSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewService(records.StaticSource(exampleCorpus()), WithMetrics(m))
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got, err := svc.Search("planning", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Location != "a" || got[0].Score != 1 {
		t.Errorf("got %+v", got)
	}
	if _, err := svc.Search("planning", 0); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("limit 0: got %v", err)
	}

	rec, err := svc.Record("b")
	if err != nil || rec.Title != "Tutorial" {
		t.Errorf("Record(b) = %+v, %v", rec, err)
	}
	if _, err := svc.Record("missing"); !errors.Is(err, apperrors.ErrRecordNotFound) {
		t.Errorf("Record(missing): got %v", err)
	}

	st := svc.Status()
	if !st.Ready || st.Generation != 1 || st.Stats.Records != 2 || st.Source != "static" {
		t.Errorf("status = %+v", st)
	}
	if v := testutil.ToFloat64(m.IndexRebuildsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("rebuild success counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")); v != 1 {
		t.Errorf("hit counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")); v != 1 {
		t.Errorf("error counter = %v, want 1", v)
	}
}

func TestServiceSurfacesInitialBuildError(t *testing.T) {
	src := &switchSource{}
	loadErr := &records.LoadError{Source: "switch", Err: errors.New("connection refused")}
	src.set(nil, loadErr)

	svc := NewService(src)
	if err := svc.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	_, err := svc.Search("planning", 10)
	if !errors.Is(err, apperrors.ErrLoad) {
		t.Fatalf("search after failed build: got %v, want ErrLoad", err)
	}
	if apperrors.HTTPStatusCode(err) != 503 {
		t.Errorf("status code = %d, want 503", apperrors.HTTPStatusCode(err))
	}
	if st := svc.Status(); st.Ready || st.Error == "" {
		t.Errorf("status = %+v", st)
	}

	src.set(exampleCorpus(), nil)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("recovery reload: %v", err)
	}
	if got, err := svc.Search("planning", 10); err != nil || len(got) != 1 {
		t.Errorf("after recovery: %v, %v", got, err)
	}
}

func TestServiceStrictEmptyCorpus(t *testing.T) {
	svc := NewService(records.StaticSource(nil), WithBuildOptions(index.WithStrictEmpty()))
	if err := svc.Reload(context.Background()); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Fatalf("got %v, want ErrEmptyCorpus", err)
	}
	if _, err := svc.Search("x", 1); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("search: got %v, want ErrEmptyCorpus", err)
	}

	lenient := NewService(records.StaticSource(nil))
	if err := lenient.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, err := lenient.Search("planning", 1); err != nil || len(got) != 0 {
		t.Errorf("empty index: %v, %v", got, err)
	}
}

func TestServiceFailedReloadKeepsPreviousIndex(t *testing.T) {
	src := &switchSource{}
	src.set(exampleCorpus(), nil)
	svc := NewService(src)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	bad := exampleCorpus()
	bad[1].Location = ""
	src.set(bad, nil)
	err := svc.Reload(context.Background())
	var mre *records.MalformedRecordError
	if !errors.As(err, &mre) || mre.Index != 1 {
		t.Fatalf("got %v, want MalformedRecordError at 1", err)
	}
	if svc.Generation() != 1 {
		t.Errorf("generation = %d, want 1", svc.Generation())
	}
	if got, err := svc.Search("hydro", 10); err != nil || len(got) != 1 {
		t.Errorf("previous index should still answer: %v, %v", got, err)
	}
}

func TestServiceRetryDoesNotRetryMalformed(t *testing.T) {
	bad := exampleCorpus()
	bad[0].Category = "function"
	src := &switchSource{}
	src.set(bad, nil)

	svc := NewService(src, WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}))
	err := svc.Reload(context.Background())
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("got %v", err)
	}
	if src.loads != 1 {
		t.Errorf("loads = %d, want 1", src.loads)
	}
}

func TestServiceRetriesOnlyTransientLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLoads int
	}{
		{"undecodable payload", &records.LoadError{Source: "switch", Err: &records.DecodeError{Err: errors.New("invalid character")}}, 1},
		{"unreachable source", &records.LoadError{Source: "switch", Err: errors.New("connection refused")}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &switchSource{}
			src.set(nil, tt.err)
			svc := NewService(src, WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))
			if err := svc.Reload(context.Background()); !errors.Is(err, apperrors.ErrLoad) {
				t.Fatalf("got %v, want ErrLoad", err)
			}
			if src.loads != tt.wantLoads {
				t.Errorf("loads = %d, want %d", src.loads, tt.wantLoads)
			}
		})
	}
}

func TestServiceOnSwap(t *testing.T) {
	svc := NewService(records.StaticSource(exampleCorpus()))
	var calls []uint64
	svc.OnSwap(func(gen uint64, stats index.Stats) {
		calls = append(calls, gen)
		if stats.Records != 2 {
			t.Errorf("stats.Records = %d", stats.Records)
		}
	})
	for i := 0; i < 3; i++ {
		if err := svc.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(calls, []uint64{1, 2, 3}) {
		t.Errorf("swap calls = %v", calls)
	}
}

func TestServiceConcurrentSearchDuringReload(t *testing.T) {
	oldCorpus := exampleCorpus()
	newCorpus := []records.DocumentRecord{
		{Location: "n1", Page: "New", Title: "Planning", Category: records.CategoryPage, Text: "planning planning"},
		{Location: "n2", Page: "New", Title: "Other", Category: records.CategoryPage, Text: "planning"},
	}
	src := &switchSource{}
	src.set(oldCorpus, nil)
	svc := NewService(src)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	wantOld := []string{"a"}
	wantNew := []string{"n1", "n2"}

	var stop atomic.Bool
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				got, err := svc.Search("planning", 10)
				if err != nil {
					errs <- err
					return
				}
				locs := locations(got)
				if !reflect.DeepEqual(locs, wantOld) && !reflect.DeepEqual(locs, wantNew) {
					errs <- errors.New("observed a mixed index: " + strings.Join(locs, ","))
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			src.set(newCorpus, nil)
		} else {
			src.set(oldCorpus, nil)
		}
		if err := svc.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	stop.Store(true)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if svc.Generation() != 51 {
		t.Errorf("generation = %d, want 51", svc.Generation())
	}
}
