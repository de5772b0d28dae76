// Package records holds the documentation records served by the search
// index: their types, validation, decoding of the Documenter search_index
// format, and the sources they are loaded from.
package records

import (
	"fmt"
)

// Category classifies a documentation entry.
type Category string

const (
	CategoryPage    Category = "page"
	CategoryMethod  Category = "method"
	CategoryType    Category = "type"
	CategorySection Category = "section"
)

// Categories lists every recognised category in a stable order.
var Categories = []Category{CategoryPage, CategoryMethod, CategoryType, CategorySection}

// ParseCategory returns the Category named by s or an error if s is not a
// recognised value. Matching is exact.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// DocumentRecord is one documentation entry. Location is its unique key.
type DocumentRecord struct {
	Location string   `json:"location"`
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Store is an immutable, validated collection of records that preserves
// insertion order.
type Store struct {
	records    []DocumentRecord
	byLocation map[string]int
}

// NewStore validates recs and returns a Store holding a private copy.
func NewStore(recs []DocumentRecord) (*Store, error) {
	if err := Validate(recs); err != nil {
		return nil, err
	}
	s := &Store{
		records:    make([]DocumentRecord, len(recs)),
		byLocation: make(map[string]int, len(recs)),
	}
	copy(s.records, recs)
	for i, r := range s.records {
		s.byLocation[r.Location] = i
	}
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// At returns the record at insertion position i.
func (s *Store) At(i int) DocumentRecord {
	return s.records[i]
}

// Get returns the record stored under location.
func (s *Store) Get(location string) (DocumentRecord, bool) {
	i, ok := s.byLocation[location]
	if !ok {
		return DocumentRecord{}, false
	}
	return s.records[i], true
}

// Position returns the insertion position of location, or -1.
func (s *Store) Position(location string) int {
	if i, ok := s.byLocation[location]; ok {
		return i
	}
	return -1
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []DocumentRecord {
	out := make([]DocumentRecord, len(s.records))
	copy(out, s.records)
	return out
}
