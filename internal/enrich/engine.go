package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oselabs/scout/internal/extract"
	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/llm"
	"github.com/oselabs/scout/internal/pipeline"
	"github.com/oselabs/scout/internal/search"
	"github.com/oselabs/scout/internal/storage"
)

// ContactModel consolidates contact details from search snippets.
type ContactModel interface {
	EnrichContact(ctx context.Context, name string, snippets []string) (*llm.ContactFields, error)
}

// PageLocator finds likely contact pages on a company's own site.
type PageLocator interface {
	Locate(ctx context.Context, website string) ([]string, error)
}

// EngineConfig tunes the enrichment stage.
type EngineConfig struct {
	// Concurrency bounds simultaneous secondary lookups. Default 3.
	Concurrency int
	// SnippetLimit caps search results consulted per company. Default 10.
	SnippetLimit int
	// LookupTimeout is the budget for one company's secondary lookups.
	// Default 45s.
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

// Engine deduplicates extracted records and fills contact gaps through
// secondary lookups: the company's own contact page first, then a targeted
// search whose snippets go to the model. Lookups only ever add fields;
// nothing already present is overwritten.
type Engine struct {
	searcher  search.Provider
	model     ContactModel
	locator   PageLocator
	fetcher   fetch.Provider
	extractor extract.Extractor
	config    EngineConfig
	logger    *slog.Logger
}

// NewEngine wires an enrichment engine. searcher, model, locator, fetcher and
// extractor may each be nil; a nil component just disables the lookups that
// need it.
func NewEngine(searcher search.Provider, model ContactModel, locator PageLocator, fetcher fetch.Provider, extractor extract.Extractor, cfg EngineConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.SnippetLimit <= 0 {
		cfg.SnippetLimit = 10
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = 45 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		searcher:  searcher,
		model:     model,
		locator:   locator,
		fetcher:   fetcher,
		extractor: extractor,
		config:    cfg,
		logger:    cfg.Logger,
	}
}

// Enrich collapses duplicates and runs secondary lookups for records missing
// both email and phone. It returns an event stream: one company event per
// unique record in first-seen order, then a done event. Enrich never fails a
// record; a failed lookup leaves it as it was.
func (e *Engine) Enrich(ctx context.Context, companies []*storage.Company) <-chan pipeline.Event {
	events := make(chan pipeline.Event)

	go func() {
		defer close(events)

		emit := func(ev pipeline.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		merged, collapsed := e.merge(companies)
		if collapsed > 0 {
			e.logger.Info("merged duplicate records", "collapsed", collapsed)
		}
		if !emit(pipeline.Status(fmt.Sprintf("Deduplicated to %d unique companies", len(merged)))) {
			return
		}

		var mu sync.Mutex
		lookupErrs := 0

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.config.Concurrency)
		for _, c := range merged {
			if c.HasContact() {
				continue
			}
			g.Go(func() error {
				lctx, cancel := context.WithTimeout(gctx, e.config.LookupTimeout)
				defer cancel()
				if err := e.lookup(lctx, c); err != nil {
					e.logger.Warn("enrichment lookup failed", "company", c.Name, "err", err)
					mu.Lock()
					lookupErrs++
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if lookupErrs > 0 {
			if !emit(pipeline.Status(fmt.Sprintf("%d enrichment lookups failed", lookupErrs))) {
				return
			}
		}

		for _, c := range merged {
			if !emit(pipeline.CompanyEvent(c)) {
				return
			}
		}

		done := pipeline.Done(
			fmt.Sprintf("Enrichment complete! %d companies enriched", len(merged)),
			pipeline.Summary{Companies: len(merged), Errors: lookupErrs},
		)
		select {
		case events <- done:
		case <-ctx.Done():
		}
	}()

	return events
}

// merge collapses duplicates in place, keeping first-seen order and filling
// each survivor's empty fields from its duplicates in arrival order.
func (e *Engine) merge(companies []*storage.Company) ([]*storage.Company, int) {
	byKey := make(map[string]*storage.Company)
	var order []*storage.Company
	collapsed := 0

	for _, c := range companies {
		if c == nil || !c.HasIdentity() {
			continue
		}
		key := DedupKey(c)
		if existing, ok := byKey[key]; ok {
			existing.MergeFrom(c)
			collapsed++
			continue
		}
		byKey[key] = c
		order = append(order, c)
	}
	return order, collapsed
}

// lookup tries the company's own contact page, then a targeted search with
// model consolidation. Either source may fill any still-empty field.
func (e *Engine) lookup(ctx context.Context, c *storage.Company) error {
	if err := e.lookupContactPage(ctx, c); err != nil {
		e.logger.Debug("contact page lookup failed", "company", c.Name, "err", err)
	}
	if c.HasContact() {
		return nil
	}
	return e.lookupSnippets(ctx, c)
}

func (e *Engine) lookupContactPage(ctx context.Context, c *storage.Company) error {
	if e.locator == nil || e.fetcher == nil || e.extractor == nil || c.Website == "" {
		return nil
	}

	pages, err := e.locator.Locate(ctx, c.Website)
	if err != nil || len(pages) == 0 {
		return err
	}

	page, err := e.fetcher.Fetch(ctx, pages[0])
	if err != nil {
		return fmt.Errorf("fetch contact page: %w", err)
	}

	result, err := e.extractor.Extract(ctx, page, c.Name+" contact information")
	if err != nil {
		return fmt.Errorf("extract contact page: %w", err)
	}
	for _, found := range result.Companies {
		c.MergeFrom(found)
	}
	return nil
}

func (e *Engine) lookupSnippets(ctx context.Context, c *storage.Company) error {
	if e.searcher == nil || e.model == nil || strings.TrimSpace(c.Name) == "" {
		return nil
	}

	results, err := e.searcher.Search(ctx, c.Name+" contact information", e.config.SnippetLimit)
	if err != nil {
		return fmt.Errorf("contact search: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Snippet); s != "" {
			snippets = append(snippets, r.Title+": "+s)
		}
	}

	fields, err := e.model.EnrichContact(ctx, c.Name, snippets)
	if err != nil {
		return fmt.Errorf("consolidate snippets: %w", err)
	}

	c.MergeFrom(&storage.Company{
		Email:       strings.TrimSpace(fields.Email),
		Phone:       strings.TrimSpace(fields.Phone),
		Address:     strings.TrimSpace(fields.Address),
		Website:     strings.TrimSpace(fields.Website),
		Description: strings.TrimSpace(fields.Description),
	})
	return nil
}
