package search

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
)

func scoringCorpus() []records.DocumentRecord {
	return []records.DocumentRecord{
		{Location: "text", Page: "P", Title: "Guide", Category: records.CategorySection, Text: "cuts cuts cuts"},
		{Location: "title", Page: "P", Title: "Cuts", Category: records.CategorySection, Text: "about the approximation"},
	}
}

func TestFieldWeightedBoostsTitles(t *testing.T) {
	tf := newEngine(t, scoringCorpus(), TermFrequency{})
	got, _ := tf.Search("cuts", 2)
	if !reflect.DeepEqual(locations(got), []string{"text", "title"}) {
		t.Fatalf("tf order = %v", locations(got))
	}

	weighted := newEngine(t, scoringCorpus(), FieldWeighted{TitleBoost: 5})
	got, _ = weighted.Search("cuts", 2)
	if !reflect.DeepEqual(locations(got), []string{"title", "text"}) {
		t.Fatalf("weighted order = %v", locations(got))
	}
	if got[0].Score != 5 || got[1].Score != 3 {
		t.Errorf("weighted scores = %v, %v; want 5, 3", got[0].Score, got[1].Score)
	}
}

func TestBM25PrefersRareTerms(t *testing.T) {
	recs := []records.DocumentRecord{
		{Location: "common1", Page: "P", Title: "A", Category: records.CategoryPage, Text: "model model"},
		{Location: "common2", Page: "P", Title: "B", Category: records.CategoryPage, Text: "model"},
		{Location: "rare", Page: "P", Title: "C", Category: records.CategoryPage, Text: "markov"},
	}
	e := newEngine(t, recs, BM25{})
	got, err := e.Search("model markov", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Location != "rare" {
		t.Errorf("BM25 order = %v, want rare first", locations(got))
	}
	for _, r := range got {
		if r.Score <= 0 {
			t.Errorf("score for %s = %v, want positive", r.Location, r.Score)
		}
	}
}

func TestScorerFunc(t *testing.T) {
	constant := ScorerFunc(func(_ *index.InvertedIndex, rec records.DocumentRecord, _ []Match) float64 {
		if rec.Location == "title" {
			return 10
		}
		return 1
	})
	e := newEngine(t, scoringCorpus(), constant)
	got, _ := e.Search("cuts", 2)
	if got[0].Location != "title" || got[0].Score != 10 {
		t.Errorf("custom scorer ignored: %+v", got)
	}
}

func TestNewScorer(t *testing.T) {
	tests := []struct {
		name    string
		boost   float64
		want    Scorer
		wantErr bool
	}{
		{"", 0, TermFrequency{}, false},
		{"tf", 0, TermFrequency{}, false},
		{"weighted", 2, FieldWeighted{TitleBoost: 2}, false},
		{"weighted", 0, nil, true},
		{"bm25", 0, BM25{K1: defaultK1, B: defaultB}, false},
		{"cosine", 0, nil, true},
	}
	for _, tt := range tests {
		got, err := NewScorer(tt.name, tt.boost)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewScorer(%q): err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("NewScorer(%q) = %#v, want %#v", tt.name, got, tt.want)
		}
	}
}
