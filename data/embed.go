// Package data embeds the documentation search index shipped with the
// service. It is the fallback corpus when no external source is configured
// and the fixture used by tests and benchmarks.
package data

import _ "embed"

// SearchIndex is a Documenter-generated search_index.js for the
// StructDualDynProg.jl documentation site.
//
//go:embed search_index.js
var SearchIndex []byte
