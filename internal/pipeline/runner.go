package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oselabs/scout/internal/metrics"
	"github.com/oselabs/scout/internal/search"
)

// Filterer narrows search candidates to the relevant ones.
type Filterer interface {
	Filter(ctx context.Context, query string, candidates []search.Candidate) []search.Candidate
}

// Crawler turns accepted URLs into an event stream.
type Crawler interface {
	Crawl(ctx context.Context, query string, urls []string) <-chan Event
}

// Runner drives a full discovery run: search, relevance filtering, crawl.
// It owns the stream contract: every run emits exactly one done event, last,
// even when the search engine is down or the query is empty.
type Runner struct {
	searcher search.Provider
	filter   Filterer
	crawler  Crawler
	logger   *slog.Logger
}

// NewRunner wires a discovery pipeline.
func NewRunner(searcher search.Provider, filter Filterer, crawler Crawler, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{searcher: searcher, filter: filter, crawler: crawler, logger: logger}
}

// Run executes a discovery run for query, crawling at most limit accepted
// URLs, and returns the event stream.
func (r *Runner) Run(ctx context.Context, query string, limit int) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		emit := func(ev Event) bool {
			metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		finish := func(s Summary) {
			metrics.EventsEmitted.WithLabelValues(string(EventDone)).Inc()
			select {
			case events <- Done("Search complete", s):
			case <-ctx.Done():
			}
		}

		query = strings.TrimSpace(query)
		if query == "" || limit <= 0 {
			finish(Summary{})
			return
		}

		if !emit(Status(fmt.Sprintf("Searching for: %s", query))) {
			return
		}

		candidates, err := r.searcher.Search(ctx, query, limit)
		if err != nil {
			metrics.SearchesTotal.WithLabelValues("error").Inc()
			r.logger.Error("search failed", "query", query, "err", err)
			if emit(ErrorEvent(fmt.Sprintf("Search failed: %v", err))) {
				finish(Summary{Errors: 1})
			}
			return
		}
		metrics.SearchesTotal.WithLabelValues("ok").Inc()
		metrics.CandidatesTotal.Add(float64(len(candidates)))

		if len(candidates) == 0 {
			emit(Status("No search results found"))
			finish(Summary{})
			return
		}
		if !emit(Status(fmt.Sprintf("Found %d search results, selecting relevant ones", len(candidates)))) {
			return
		}

		accepted := r.filter.Filter(ctx, query, candidates)
		metrics.CandidatesAccepted.Add(float64(len(accepted)))
		if len(accepted) > limit {
			accepted = accepted[:limit]
		}
		if len(accepted) == 0 {
			emit(Status("No relevant results after filtering"))
			finish(Summary{})
			return
		}
		if !emit(Status(fmt.Sprintf("Crawling %d pages", len(accepted)))) {
			return
		}

		urls := make([]string, 0, len(accepted))
		for _, c := range accepted {
			urls = append(urls, c.URL)
		}

		// The crawler closes its stream after its own done event; forwarding
		// everything keeps that event last on ours too.
		for ev := range r.crawler.Crawl(ctx, query, urls) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}
