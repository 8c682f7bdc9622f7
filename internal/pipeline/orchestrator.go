package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oselabs/scout/internal/extract"
	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/metrics"
)

// OrchestratorConfig tunes the crawl stage.
type OrchestratorConfig struct {
	// Concurrency bounds simultaneous page fetches. Default 5.
	Concurrency int
	// MaxPages bounds pagination depth per starting URL. Default 3.
	MaxPages int
	// PageTimeout is the budget for fetching plus extracting one page.
	// Default 90s.
	PageTimeout time.Duration
	Logger      *slog.Logger
}

// Orchestrator crawls a set of accepted URLs concurrently and streams results
// as they complete. Output order follows completion, not input order; the
// done event is always last and always exactly one.
type Orchestrator struct {
	fetcher   fetch.Provider
	extractor extract.Extractor
	config    OrchestratorConfig
	logger    *slog.Logger
}

// NewOrchestrator wires a crawl stage from a fetcher and an extractor.
func NewOrchestrator(fetcher fetch.Provider, extractor extract.Extractor, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		config:    cfg,
		logger:    cfg.Logger,
	}
}

// Crawl processes urls and returns the event stream. The channel is closed
// after the done event. Cancelling ctx stops in-flight work; the stream still
// terminates cleanly.
func (o *Orchestrator) Crawl(ctx context.Context, query string, urls []string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		var pages, companies, errCount atomic.Int64

		emit := func(ev Event) bool {
			metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if len(urls) > 0 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(o.config.Concurrency)

			for _, u := range urls {
				g.Go(func() error {
					o.crawlOne(gctx, query, u, emit, &pages, &companies, &errCount)
					return nil
				})
			}
			_ = g.Wait()
		}

		done := Done("Crawl complete", Summary{
			Companies: int(companies.Load()),
			Pages:     int(pages.Load()),
			Errors:    int(errCount.Load()),
		})
		metrics.EventsEmitted.WithLabelValues(string(EventDone)).Inc()
		select {
		case events <- done:
		case <-ctx.Done():
		}
	}()

	return events
}

// crawlOne walks one starting URL through up to MaxPages of pagination. Page
// failures are reported on the stream but never abort the run.
func (o *Orchestrator) crawlOne(ctx context.Context, query, startURL string, emit func(Event) bool, pages, companies, errCount *atomic.Int64) {
	current := startURL
	clickSelector := ""

	for pageNum := 1; pageNum <= o.config.MaxPages; pageNum++ {
		if ctx.Err() != nil {
			return
		}

		// One budget covers fetching and extracting the page.
		pctx, cancel := context.WithTimeout(ctx, o.config.PageTimeout)

		page, err := o.fetchPage(pctx, current, clickSelector)
		if err != nil {
			cancel()
			errCount.Add(1)
			metrics.PagesFetched.WithLabelValues("unknown", "error").Inc()
			o.logger.Warn("page fetch failed", "url", current, "err", err)
			emit(ErrorEvent(fmt.Sprintf("Failed to crawl %s: %v", current, err)))
			return
		}
		pages.Add(1)
		metrics.PagesFetched.WithLabelValues(page.Via, "ok").Inc()
		metrics.FetchDuration.WithLabelValues(page.Via).Observe(page.Duration.Seconds())

		result, err := o.extractor.Extract(pctx, page, query)
		cancel()
		if err != nil {
			errCount.Add(1)
			o.logger.Warn("extraction failed", "url", current, "err", err)
			emit(ErrorEvent(fmt.Sprintf("Failed to extract from %s: %v", current, err)))
			return
		}

		if len(result.Companies) == 0 {
			emit(Status(fmt.Sprintf("No company details found on %s", current)))
		}
		for _, c := range result.Companies {
			companies.Add(1)
			metrics.CompaniesExtracted.Inc()
			if !emit(CompanyEvent(c)) {
				return
			}
		}

		next, selector := nextPage(current, result)
		if next == "" {
			return
		}
		if next == current && selector == "" {
			return
		}
		current = next
		clickSelector = selector
		emit(Status(fmt.Sprintf("Following pagination on %s (page %d)", startURL, pageNum+1)))
	}
}

// fetchPage fetches one page. When pagination requires clicking a control,
// the click is sent as a script; that path needs the browser service, so a
// plain provider falls back to refetching the URL.
func (o *Orchestrator) fetchPage(ctx context.Context, url, clickSelector string) (*fetch.Page, error) {
	if clickSelector != "" {
		if sp, ok := o.fetcher.(fetch.ScriptedProvider); ok {
			script := fmt.Sprintf("document.querySelector(%q)?.click();", clickSelector)
			return sp.FetchWithScripts(ctx, url, []string{script})
		}
	}
	return o.fetcher.Fetch(ctx, url)
}

// nextPage decides where pagination goes after the current page. A next-page
// URL wins; an in-page control keeps the same URL and returns the selector.
func nextPage(current string, result *extract.Result) (string, string) {
	if u := strings.TrimSpace(result.NextPageURL); u != "" {
		return u, ""
	}
	if sel := strings.TrimSpace(result.PaginationSelector); sel != "" {
		return current, sel
	}
	return "", ""
}
