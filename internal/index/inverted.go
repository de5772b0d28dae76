// Package index builds the immutable inverted index over a record store.
// An InvertedIndex is fully constructed by Build before it is returned and
// is never mutated afterwards, so any number of goroutines may read it
// without locking.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type InvertedIndex struct {
	store       *records.Store
	postings    map[string]PostingList
	docLengths  []int
	totalTokens int
	postingSize int
	builtAt     time.Time
}

type buildOptions struct {
	strictEmpty bool
}

// Option configures Build.
type Option func(*buildOptions)

// WithStrictEmpty makes Build fail with ErrEmptyCorpus on an empty input
// instead of returning an empty index.
func WithStrictEmpty() Option {
	return func(o *buildOptions) { o.strictEmpty = true }
}

// Build validates recs and indexes the title and text of each record.
func Build(recs []records.DocumentRecord, opts ...Option) (*InvertedIndex, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(recs) == 0 && o.strictEmpty {
		return nil, apperrors.ErrEmptyCorpus
	}
	store, err := records.NewStore(recs)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	idx := &InvertedIndex{
		store:      store,
		postings:   make(map[string]PostingList),
		docLengths: make([]int, store.Len()),
	}
	for doc := 0; doc < store.Len(); doc++ {
		idx.addRecord(doc, store.At(doc))
	}
	idx.builtAt = time.Now().UTC()

	slog.Default().With("component", "index-builder").Debug("index built",
		"records", store.Len(),
		"terms", len(idx.postings),
		"postings", idx.postingSize,
	)
	return idx, nil
}

func (idx *InvertedIndex) addRecord(doc int, rec records.DocumentRecord) {
	titleTokens := tokenizer.Tokenize(rec.Title)
	textTokens := tokenizer.Tokenize(rec.Text)

	termData := make(map[string]*Posting)
	order := make([]string, 0, len(titleTokens)+len(textTokens))
	add := func(term string, position int, inTitle bool) {
		p, exists := termData[term]
		if !exists {
			p = &Posting{
				Doc:       doc,
				Location:  rec.Location,
				Positions: make([]int, 0, 4),
			}
			termData[term] = p
			order = append(order, term)
		}
		p.Frequency++
		if inTitle {
			p.TitleFrequency++
		}
		p.Positions = append(p.Positions, position)
	}
	for _, tok := range titleTokens {
		add(tok.Term, tok.Position, true)
	}
	offset := len(titleTokens)
	for _, tok := range textTokens {
		add(tok.Term, offset+tok.Position, false)
	}

	// Records are visited in insertion order, so appending keeps every
	// posting list sorted by Doc.
	for _, term := range order {
		idx.postings[term] = append(idx.postings[term], *termData[term])
	}
	idx.postingSize += len(order)
	idx.docLengths[doc] = len(titleTokens) + len(textTokens)
	idx.totalTokens += idx.docLengths[doc]
}

// Postings returns the posting list for an already-normalised term. The
// returned slice is shared and must not be modified.
func (idx *InvertedIndex) Postings(term string) PostingList {
	return idx.postings[term]
}

// DocFreq returns the number of records containing term.
func (idx *InvertedIndex) DocFreq(term string) int {
	return len(idx.postings[term])
}

// Store returns the records the index was built from.
func (idx *InvertedIndex) Store() *records.Store {
	return idx.store
}

// Len returns the number of indexed records.
func (idx *InvertedIndex) Len() int {
	return idx.store.Len()
}

// DocLength returns the token count of the record at insertion position doc.
func (idx *InvertedIndex) DocLength(doc int) int {
	return idx.docLengths[doc]
}

func (idx *InvertedIndex) AvgDocLength() float64 {
	if len(idx.docLengths) == 0 {
		return 0
	}
	return float64(idx.totalTokens) / float64(len(idx.docLengths))
}

func (idx *InvertedIndex) BuiltAt() time.Time {
	return idx.builtAt
}

func (idx *InvertedIndex) Stats() Stats {
	return Stats{
		Records:      idx.store.Len(),
		Terms:        len(idx.postings),
		Postings:     idx.postingSize,
		AvgDocLength: idx.AvgDocLength(),
	}
}

// Snapshot returns every term with its postings, sorted by term.
func (idx *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.postings))
	for term, postings := range idx.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
