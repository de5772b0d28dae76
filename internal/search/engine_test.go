package search

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/data"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func exampleCorpus() []records.DocumentRecord {
	return []records.DocumentRecord{
		{Location: "a", Page: "Quick Start", Title: "Quick Start", Category: records.CategoryPage, Text: "production planning"},
		{Location: "b", Page: "Tutorial", Title: "Tutorial", Category: records.CategoryPage, Text: "hydro thermal scheduling"},
	}
}

func newEngine(t *testing.T, recs []records.DocumentRecord, scorer Scorer) *Engine {
	t.Helper()
	idx, err := index.Build(recs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewEngine(idx, scorer)
}

func embeddedEngine(t *testing.T) *Engine {
	t.Helper()
	recs, err := records.Parse(data.SearchIndex)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return newEngine(t, recs, nil)
}

func locations(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Location
	}
	return out
}

func TestSearchWorkedExample(t *testing.T) {
	e := newEngine(t, exampleCorpus(), nil)

	got, err := e.Search("planning", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Location != "a" || got[0].Score != 1 {
		t.Errorf("search(planning) = %+v, want [{a 1}]", got)
	}

	tests := []string{"stopping criterion", "", "  ,;  ", "a"}
	for _, q := range tests {
		got, err := e.Search(q, 10)
		if err != nil {
			t.Errorf("Search(%q): unexpected error %v", q, err)
			continue
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q) = %v, want empty non-nil slice", q, got)
		}
	}
}

func TestSearchInvalidLimit(t *testing.T) {
	e := newEngine(t, exampleCorpus(), nil)
	for _, limit := range []int{0, -1, -100} {
		_, err := e.Search("planning", limit)
		if !errors.Is(err, apperrors.ErrInvalidQuery) {
			t.Errorf("limit %d: got %v, want ErrInvalidQuery", limit, err)
		}
		if apperrors.HTTPStatusCode(err) != 400 {
			t.Errorf("limit %d: status = %d, want 400", limit, apperrors.HTTPStatusCode(err))
		}
	}
}

func TestSearchOrSemanticsAndScoring(t *testing.T) {
	recs := []records.DocumentRecord{
		{Location: "one", Page: "P", Title: "Hydro", Category: records.CategorySection, Text: "hydro planning"},
		{Location: "two", Page: "P", Title: "Thermal", Category: records.CategorySection, Text: "thermal units"},
		{Location: "three", Page: "P", Title: "Hydro hydro", Category: records.CategorySection, Text: "thermal hydro planning"},
	}
	e := newEngine(t, recs, nil)

	got, err := e.Search("hydro thermal", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"three", "one", "two"}
	if !reflect.DeepEqual(locations(got), want) {
		t.Fatalf("order = %v, want %v", locations(got), want)
	}
	// three: hydro x3 + thermal x1; one: hydro x2; two: thermal x2.
	if got[0].Score != 4 || got[1].Score != 2 || got[2].Score != 2 {
		t.Errorf("scores = %v %v %v, want 4 2 2", got[0].Score, got[1].Score, got[2].Score)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	recs := []records.DocumentRecord{
		{Location: "z", Page: "P", Title: "Z", Category: records.CategoryMethod, Text: "solver"},
		{Location: "m", Page: "P", Title: "M", Category: records.CategoryMethod, Text: "solver"},
		{Location: "a", Page: "P", Title: "A", Category: records.CategoryMethod, Text: "solver"},
	}
	e := newEngine(t, recs, nil)
	for i := 0; i < 20; i++ {
		got, err := e.Search("solver", 10)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(locations(got), []string{"z", "m", "a"}) {
			t.Fatalf("tie order = %v, want insertion order", locations(got))
		}
	}
}

func TestSearchDuplicateQueryTermsCountOnce(t *testing.T) {
	e := newEngine(t, exampleCorpus(), nil)
	got, err := e.Search("planning PLANNING planning", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Score != 1 {
		t.Errorf("got %+v, want a single hit with score 1", got)
	}
}

func TestSearchEveryTermFindsItsRecord(t *testing.T) {
	e := embeddedEngine(t)
	store := e.Index().Store()
	for _, rec := range store.Records() {
		terms := append(tokenizer.Terms(rec.Title), tokenizer.Terms(rec.Text)...)
		for _, term := range terms {
			got, err := e.Search(term, store.Len())
			if err != nil {
				t.Fatalf("Search(%q): %v", term, err)
			}
			found := false
			for _, r := range got {
				if r.Location == rec.Location {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Search(%q) did not return %q", term, rec.Location)
			}
		}
	}
}

func TestSearchResultBounds(t *testing.T) {
	e := embeddedEngine(t)
	total := e.Index().Len()
	queries := []string{"hydro", "the", "sddp policy simulation", "model training", "zzz"}
	for _, q := range queries {
		for _, limit := range []int{1, 2, 5, 100} {
			got, err := e.Search(q, limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) > limit || len(got) > total {
				t.Errorf("Search(%q, %d) returned %d results", q, limit, len(got))
			}
			for i := 1; i < len(got); i++ {
				if got[i].Score > got[i-1].Score {
					t.Errorf("Search(%q) not sorted by score", q)
				}
			}
		}
		all := e.SearchAll(q)
		if len(all) > total {
			t.Errorf("SearchAll(%q) returned %d > %d", q, len(all), total)
		}
		if top, _ := e.Search(q, 1); len(all) > 0 && top[0].Location != all[0].Location {
			t.Errorf("truncation changed the best result for %q", q)
		}
	}
}

func TestSearchDeterministicAcrossRebuilds(t *testing.T) {
	first := embeddedEngine(t)
	second := embeddedEngine(t)
	for _, q := range []string{"hydro thermal", "policy graph", "stopping rules", "sddp"} {
		a := first.SearchAll(q)
		b := second.SearchAll(q)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("rebuild changed results for %q", q)
		}
	}
}

func TestExecuteCategoryFilter(t *testing.T) {
	recs := []records.DocumentRecord{
		{Location: "p", Page: "P", Title: "Policy", Category: records.CategoryPage, Text: "policy policy policy"},
		{Location: "t", Page: "P", Title: "PolicyGraph", Category: records.CategoryType, Text: "policy"},
		{Location: "m", Page: "P", Title: "train", Category: records.CategoryMethod, Text: "policy"},
	}
	e := newEngine(t, recs, nil)

	res, err := e.Execute(Query{Text: "policy", Limit: 1, Category: records.CategoryType})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHits != 1 || len(res.Results) != 1 || res.Results[0].Location != "t" {
		t.Errorf("filtered result = %+v", res)
	}

	_, err = e.Execute(Query{Text: "policy", Limit: 1, Category: "function"})
	if !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("unknown category: got %v, want ErrInvalidQuery", err)
	}
}

func TestExecuteReportsTermStats(t *testing.T) {
	e := newEngine(t, exampleCorpus(), nil)
	res, err := e.Execute(Query{Text: "Planning, hydro! unknown", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Terms, []string{"planning", "hydro", "unknown"}) {
		t.Errorf("terms = %v", res.Terms)
	}
	if res.TotalHits != 2 || len(res.Results) != 1 {
		t.Errorf("total hits = %d, results = %d, want 2 and 1", res.TotalHits, len(res.Results))
	}
	if res.TermStats["planning"] != 1 || res.TermStats["hydro"] != 1 {
		t.Errorf("term stats = %v", res.TermStats)
	}
	if _, ok := res.TermStats["unknown"]; ok {
		t.Error("unknown terms should not appear in term stats")
	}
}

func TestEmptyIndexReturnsNoResults(t *testing.T) {
	e := newEngine(t, nil, nil)
	got, err := e.Search("anything", 5)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v; want empty result", got, err)
	}
}
