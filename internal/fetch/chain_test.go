package fetch

import (
	"context"
	"errors"
	"testing"
)

type stubScripted struct {
	page    *Page
	err     error
	calls   int
	scripts [][]string
}

func (s *stubScripted) Fetch(ctx context.Context, url string) (*Page, error) {
	return s.FetchWithScripts(ctx, url, nil)
}

func (s *stubScripted) FetchWithScripts(_ context.Context, _ string, scripts []string) (*Page, error) {
	s.calls++
	s.scripts = append(s.scripts, scripts)
	return s.page, s.err
}

type stubProvider struct {
	page  *Page
	err   error
	calls int
}

func (s *stubProvider) Fetch(_ context.Context, _ string) (*Page, error) {
	s.calls++
	return s.page, s.err
}

func TestChain_BrowserPrimary(t *testing.T) {
	browser := &stubScripted{page: &Page{URL: "u", Via: "browser"}}
	direct := &stubProvider{page: &Page{URL: "u", Via: "direct"}}
	c := NewChain(browser, direct, testLogger())

	page, err := c.Fetch(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Via != "browser" {
		t.Errorf("expected browser result, got %s", page.Via)
	}
	if direct.calls != 0 {
		t.Errorf("direct should not be called when browser succeeds")
	}
}

func TestChain_FallsBackToDirect(t *testing.T) {
	browser := &stubScripted{err: errors.New("service down")}
	direct := &stubProvider{page: &Page{URL: "u", Via: "direct"}}
	c := NewChain(browser, direct, testLogger())

	page, err := c.Fetch(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Via != "direct" {
		t.Errorf("expected direct fallback, got %s", page.Via)
	}
}

func TestChain_ChallengeRetriesThroughBrowser(t *testing.T) {
	direct := &stubProvider{page: &Page{URL: "u", Via: "direct", Challenged: true, ChallengeSrc: "Cloudflare"}}
	browser := &stubScripted{page: &Page{URL: "u", Via: "browser"}}
	// The browser fails its first call so the chain lands on the direct path,
	// whose challenged result should be retried through the browser.
	c := NewChain(&failOnce{inner: browser}, direct, testLogger())

	page, err := c.Fetch(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Via != "browser" {
		t.Errorf("expected challenged direct page retried through browser, got %s", page.Via)
	}
	if direct.calls != 1 {
		t.Errorf("expected 1 direct call, got %d", direct.calls)
	}
}

// failOnce fails its first call and delegates afterwards.
type failOnce struct {
	inner ScriptedProvider
	calls int
}

func (f *failOnce) Fetch(ctx context.Context, url string) (*Page, error) {
	return f.FetchWithScripts(ctx, url, nil)
}

func (f *failOnce) FetchWithScripts(ctx context.Context, url string, scripts []string) (*Page, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("first call fails")
	}
	return f.inner.FetchWithScripts(ctx, url, scripts)
}

func TestChain_DirectOnly(t *testing.T) {
	direct := &stubProvider{page: &Page{URL: "u", Via: "direct"}}
	c := NewChain(nil, direct, testLogger())

	page, err := c.Fetch(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Via != "direct" {
		t.Errorf("expected direct result, got %s", page.Via)
	}
}

func TestChain_DirectErrorPropagates(t *testing.T) {
	direct := &stubProvider{err: errors.New("boom")}
	c := NewChain(nil, direct, testLogger())

	if _, err := c.Fetch(context.Background(), "u"); err == nil {
		t.Fatal("expected error")
	}
}
