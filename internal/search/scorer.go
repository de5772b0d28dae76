package search

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
)

// Match is one query term found in a candidate record.
type Match struct {
	Term    string
	Posting index.Posting
}

// Scorer ranks a candidate record given the query terms it matched.
type Scorer interface {
	Score(idx *index.InvertedIndex, rec records.DocumentRecord, matches []Match) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(idx *index.InvertedIndex, rec records.DocumentRecord, matches []Match) float64

func (f ScorerFunc) Score(idx *index.InvertedIndex, rec records.DocumentRecord, matches []Match) float64 {
	return f(idx, rec, matches)
}

// TermFrequency sums the raw frequency of every matched term.
type TermFrequency struct{}

func (TermFrequency) Score(_ *index.InvertedIndex, _ records.DocumentRecord, matches []Match) float64 {
	var score float64
	for _, m := range matches {
		score += float64(m.Posting.Frequency)
	}
	return score
}

// FieldWeighted counts title occurrences TitleBoost times and text
// occurrences once.
type FieldWeighted struct {
	TitleBoost float64
}

func (f FieldWeighted) Score(_ *index.InvertedIndex, _ records.DocumentRecord, matches []Match) float64 {
	var score float64
	for _, m := range matches {
		title := float64(m.Posting.TitleFrequency)
		text := float64(m.Posting.Frequency - m.Posting.TitleFrequency)
		score += title*f.TitleBoost + text
	}
	return score
}

// BM25 is Okapi BM25 with the usual k1 and b parameters.
type BM25 struct {
	K1 float64
	B  float64
}

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

func (s BM25) Score(idx *index.InvertedIndex, _ records.DocumentRecord, matches []Match) float64 {
	k1, b := s.K1, s.B
	if k1 == 0 {
		k1 = defaultK1
	}
	if b == 0 {
		b = defaultB
	}
	totalDocs := int64(idx.Len())
	avgDocLength := idx.AvgDocLength()
	var score float64
	for _, m := range matches {
		idf := computeIDF(totalDocs, int64(idx.DocFreq(m.Term)))
		tfNorm := computeTFNorm(
			float64(m.Posting.Frequency),
			float64(idx.DocLength(m.Posting.Doc)),
			avgDocLength,
			k1, b,
		)
		score += idf * tfNorm
	}
	return math.Round(score*10000) / 10000
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// NewScorer resolves a configured scorer name: "tf" (default), "weighted",
// or "bm25".
func NewScorer(name string, titleBoost float64) (Scorer, error) {
	switch name {
	case "", "tf":
		return TermFrequency{}, nil
	case "weighted":
		if titleBoost <= 0 {
			return nil, fmt.Errorf("title boost must be positive, got %v", titleBoost)
		}
		return FieldWeighted{TitleBoost: titleBoost}, nil
	case "bm25":
		return BM25{K1: defaultK1, B: defaultB}, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", name)
	}
}
