// Package tokenizer provides text tokenisation for the search index.
// It lower-cases input, treats punctuation and symbols as separators, splits
// on whitespace, and drops terms shorter than MinTermLength runes.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTermLength is the stop-length filter: shorter terms are discarded.
const MinTermLength = 2

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into a slice of lowercased Tokens. The same input
// always yields the same sequence.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) < MinTermLength {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the term strings produced by Tokenize.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// UniqueTerms returns the distinct terms of text in first-occurrence order.
func UniqueTerms(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t.Term]; dup {
			continue
		}
		seen[t.Term] = struct{}{}
		terms = append(terms, t.Term)
	}
	return terms
}

// isSeparator splits on punctuation instead of deleting it, so qualified
// names and signatures stay searchable by their parts: "Module.func" yields
// "module" and "func", and "JuliaOpt's" yields "juliaopt" with the lone "s"
// dropped by the length filter.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
