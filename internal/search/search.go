package search

import (
	"context"
	"errors"
)

// Candidate is a single result returned by the metasearch engine, before any
// relevance judgment.
type Candidate struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ErrUpstream marks failures where the search engine was unreachable or
// returned a malformed response. A run cannot proceed past it: with no
// candidates there is nothing to crawl.
var ErrUpstream = errors.New("search engine unavailable")

// Provider abstracts a metasearch engine that returns candidate URLs for a
// query. Implementations may use hosted SearxNG instances, official APIs, or
// anything else. limit caps the number of candidates requested, not returned.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}
