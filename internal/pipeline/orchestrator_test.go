package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oselabs/scout/internal/extract"
	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher serves canned pages and can track concurrency.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[string]*fetch.Page
	errs     map[string]error
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	cur := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	if p, ok := s.pages[url]; ok {
		return p, nil
	}
	return &fetch.Page{URL: url, StatusCode: 200, HTML: "<html></html>", Via: "direct"}, nil
}

// stubExtractor returns canned results keyed by page URL. With block set it
// stalls until the context expires.
type stubExtractor struct {
	mu      sync.Mutex
	results map[string]*extract.Result
	errs    map[string]error
	block   bool
}

func (s *stubExtractor) Extract(ctx context.Context, page *fetch.Page, _ string) (*extract.Result, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[page.URL]; ok {
		return nil, err
	}
	if r, ok := s.results[page.URL]; ok {
		return r, nil
	}
	return &extract.Result{}, nil
}

func company(name string) *storage.Company {
	return &storage.Company{ID: name, Name: name, CreatedAt: time.Now()}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestOrchestrator_DoneIsLastAndSingle(t *testing.T) {
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"u1": {Companies: []*storage.Company{company("A")}},
		"u2": {Companies: []*storage.Company{company("B"), company("C")}},
	}}
	o := NewOrchestrator(&stubFetcher{}, extractor, OrchestratorConfig{Logger: testLogger()})

	events := collect(t, o.Crawl(context.Background(), "q", []string{"u1", "u2"}))

	if len(events) == 0 {
		t.Fatal("no events")
	}
	doneCount := 0
	for i, ev := range events {
		if ev.Type == EventDone {
			doneCount++
			if i != len(events)-1 {
				t.Errorf("done event at position %d, not last", i)
			}
		}
	}
	if doneCount != 1 {
		t.Fatalf("expected exactly 1 done event, got %d", doneCount)
	}

	last := events[len(events)-1]
	if last.Summary == nil || last.Summary.Companies != 3 {
		t.Errorf("expected summary with 3 companies, got %+v", last.Summary)
	}
}

func TestOrchestrator_EmptyInput(t *testing.T) {
	o := NewOrchestrator(&stubFetcher{}, &stubExtractor{}, OrchestratorConfig{Logger: testLogger()})

	events := collect(t, o.Crawl(context.Background(), "q", nil))
	if len(events) != 1 || events[0].Type != EventDone {
		t.Fatalf("expected a single done event, got %+v", events)
	}
	if events[0].Summary.Companies != 0 {
		t.Errorf("expected zero companies, got %d", events[0].Summary.Companies)
	}
}

func TestOrchestrator_PageFailureIsLocal(t *testing.T) {
	fetcher := &stubFetcher{errs: map[string]error{"bad": errors.New("boom")}}
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"good": {Companies: []*storage.Company{company("A")}},
	}}
	o := NewOrchestrator(fetcher, extractor, OrchestratorConfig{Logger: testLogger()})

	events := collect(t, o.Crawl(context.Background(), "q", []string{"bad", "good"}))

	var companies, errs int
	for _, ev := range events {
		switch ev.Type {
		case EventCompany:
			companies++
		case EventError:
			errs++
		}
	}
	if companies != 1 {
		t.Errorf("expected the good page to still produce 1 company, got %d", companies)
	}
	if errs != 1 {
		t.Errorf("expected an error event for the failed page, got %d", errs)
	}

	done := events[len(events)-1]
	if done.Type != EventDone || done.Summary.Errors != 1 {
		t.Errorf("expected done with 1 error, got %+v", done)
	}
}

func TestOrchestrator_EmptyExtractionIsSkip(t *testing.T) {
	o := NewOrchestrator(&stubFetcher{}, &stubExtractor{}, OrchestratorConfig{Logger: testLogger()})

	events := collect(t, o.Crawl(context.Background(), "q", []string{"thin"}))

	var statuses, companies int
	for _, ev := range events {
		switch ev.Type {
		case EventStatus:
			statuses++
		case EventCompany:
			companies++
		case EventError:
			t.Errorf("a page without companies is a skip, not an error: %+v", ev)
		}
	}
	if statuses == 0 {
		t.Error("expected a status note for the skipped page")
	}
	if companies != 0 {
		t.Errorf("expected no company events, got %d", companies)
	}

	done := events[len(events)-1]
	if done.Summary.Pages != 1 || done.Summary.Errors != 0 {
		t.Errorf("unexpected summary: %+v", done.Summary)
	}
}

func TestOrchestrator_PageBudgetCoversExtraction(t *testing.T) {
	// A hung extraction counts against the per-page budget; the run must not
	// stall indefinitely after the fetch has already returned.
	extractor := &stubExtractor{block: true}
	o := NewOrchestrator(&stubFetcher{}, extractor, OrchestratorConfig{
		PageTimeout: 50 * time.Millisecond,
		Logger:      testLogger(),
	})

	finished := make(chan []Event, 1)
	go func() {
		finished <- collect(t, o.Crawl(context.Background(), "q", []string{"slow"}))
	}()

	select {
	case events := <-finished:
		done := events[len(events)-1]
		if done.Type != EventDone || done.Summary.Errors != 1 {
			t.Errorf("expected done with 1 error, got %+v", done)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("extraction outlived the page budget")
	}
}

func TestOrchestrator_ConcurrencyBound(t *testing.T) {
	fetcher := &stubFetcher{delay: 30 * time.Millisecond}
	o := NewOrchestrator(fetcher, &stubExtractor{}, OrchestratorConfig{
		Concurrency: 2,
		Logger:      testLogger(),
	})

	urls := []string{"a", "b", "c", "d", "e", "f"}
	collect(t, o.Crawl(context.Background(), "q", urls))

	if peak := fetcher.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", peak)
	}
}

func TestOrchestrator_FollowsPagination(t *testing.T) {
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"p1": {Companies: []*storage.Company{company("A")}, NextPageURL: "p2"},
		"p2": {Companies: []*storage.Company{company("B")}, NextPageURL: "p3"},
		"p3": {Companies: []*storage.Company{company("C")}, NextPageURL: "p4"},
		"p4": {Companies: []*storage.Company{company("D")}},
	}}
	o := NewOrchestrator(&stubFetcher{}, extractor, OrchestratorConfig{MaxPages: 3, Logger: testLogger()})

	events := collect(t, o.Crawl(context.Background(), "q", []string{"p1"}))

	var names []string
	for _, ev := range events {
		if ev.Type == EventCompany {
			names = append(names, ev.Company.Name)
		}
	}
	// Depth capped at 3 pages, so D is never reached.
	if len(names) != 3 || names[0] != "A" || names[1] != "B" || names[2] != "C" {
		t.Errorf("expected A,B,C from 3 pages, got %v", names)
	}

	done := events[len(events)-1]
	if done.Summary.Pages != 3 {
		t.Errorf("expected 3 pages counted, got %d", done.Summary.Pages)
	}
}

func TestOrchestrator_ClickPaginationNeedsScripts(t *testing.T) {
	// A selector-only pagination hint on a provider without script support
	// must not loop forever on the same URL.
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"p1": {Companies: []*storage.Company{company("A")}, PaginationSelector: ".next"},
	}}
	o := NewOrchestrator(&stubFetcher{}, extractor, OrchestratorConfig{MaxPages: 3, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		collect(t, o.Crawl(context.Background(), "q", []string{"p1"}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("crawl did not terminate")
	}
}

func TestOrchestrator_Cancellation(t *testing.T) {
	fetcher := &stubFetcher{delay: 50 * time.Millisecond}
	extractor := &stubExtractor{results: map[string]*extract.Result{
		"a": {Companies: []*storage.Company{company("A")}},
	}}
	o := NewOrchestrator(fetcher, extractor, OrchestratorConfig{Concurrency: 1, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	events := o.Crawl(ctx, "q", []string{"a", "b", "c"})

	cancel()

	// The stream must still terminate (channel closes) after cancellation.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				return
			}
		case <-timeout:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}
