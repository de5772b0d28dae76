// Package search answers keyword queries against an inverted index and
// manages the currently published index.
//
// Engine is a read-only view over one immutable index. Service owns the
// published Engine and replaces it atomically on reload, so concurrent
// searches see either the old or the new index in full.
package search

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Result is a matched record with its score.
type Result struct {
	records.DocumentRecord
	Score float64 `json:"score"`
}

// Query describes one search request. Limit must be positive; Category, when
// set, restricts results to that category before truncation.
type Query struct {
	Text     string
	Limit    int
	Category records.Category
}

// SearchResult is the full response for a Query.
type SearchResult struct {
	Query     string         `json:"query"`
	Terms     []string       `json:"terms"`
	TotalHits int            `json:"total_hits"`
	Results   []Result       `json:"results"`
	TermStats map[string]int `json:"term_stats"`
}

type Engine struct {
	idx    *index.InvertedIndex
	scorer Scorer
}

// NewEngine wraps idx. A nil scorer selects TermFrequency.
func NewEngine(idx *index.InvertedIndex, scorer Scorer) *Engine {
	if scorer == nil {
		scorer = TermFrequency{}
	}
	return &Engine{idx: idx, scorer: scorer}
}

// Index returns the index this engine reads.
func (e *Engine) Index() *index.InvertedIndex {
	return e.idx
}

// Search returns at most limit results for query, best first. Records with
// equal scores keep their insertion order.
func (e *Engine) Search(query string, limit int) ([]Result, error) {
	res, err := e.Execute(Query{Text: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

// SearchAll returns every matching record, best first.
func (e *Engine) SearchAll(query string) []Result {
	return e.execute(Query{Text: query}).Results
}

// Execute runs q and reports hit counts alongside the ranked results.
func (e *Engine) Execute(q Query) (*SearchResult, error) {
	if q.Limit <= 0 {
		return nil, apperrors.InvalidQuery("limit must be a positive integer, got %d", q.Limit)
	}
	if q.Category != "" {
		if _, err := records.ParseCategory(string(q.Category)); err != nil {
			return nil, apperrors.InvalidQuery("%v", err)
		}
	}
	return e.execute(q), nil
}

type candidate struct {
	doc     int
	matches []Match
}

type scored struct {
	doc   int
	score float64
}

func (e *Engine) execute(q Query) *SearchResult {
	terms := tokenizer.UniqueTerms(q.Text)
	result := &SearchResult{
		Query:     q.Text,
		Terms:     terms,
		Results:   []Result{},
		TermStats: make(map[string]int, len(terms)),
	}
	if len(terms) == 0 {
		return result
	}

	store := e.idx.Store()
	candidates := make(map[int]*candidate)
	for _, term := range terms {
		postings := e.idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		result.TermStats[term] = len(postings)
		for _, p := range postings {
			if q.Category != "" && store.At(p.Doc).Category != q.Category {
				continue
			}
			c, ok := candidates[p.Doc]
			if !ok {
				c = &candidate{doc: p.Doc}
				candidates[p.Doc] = c
			}
			c.matches = append(c.matches, Match{Term: term, Posting: p})
		}
	}

	ranked := make([]scored, 0, len(candidates))
	for doc, c := range candidates {
		ranked = append(ranked, scored{
			doc:   doc,
			score: e.scorer.Score(e.idx, store.At(doc), c.matches),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].doc < ranked[j].doc
	})

	result.TotalHits = len(ranked)
	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	result.Results = make([]Result, len(ranked))
	for i, s := range ranked {
		result.Results[i] = Result{
			DocumentRecord: store.At(s.doc),
			Score:          s.score,
		}
	}
	return result
}
