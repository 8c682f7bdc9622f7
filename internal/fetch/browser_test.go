package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBrowserTest(t *testing.T, handler http.Handler) *BrowserClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	b, err := NewBrowserClient(BrowserConfig{
		Endpoint:    ts.URL + "/crawl",
		PageTimeout: 5 * time.Second,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create browser client: %v", err)
	}
	return b
}

func TestBrowserClient_Fetch(t *testing.T) {
	b := newBrowserTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req crawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.URLs) != 1 || req.URLs[0] != "https://target.example" {
			t.Errorf("unexpected urls: %v", req.URLs)
		}
		if req.BrowserType != "chromium" || !req.Headless {
			t.Errorf("unexpected browser settings: %+v", req)
		}
		if len(req.JSCode) == 0 {
			t.Errorf("expected scroll script in js_code")
		}

		fmt.Fprint(w, `{"results":[{"url":"https://target.example","html":"<html>hi</html>","markdown":"# hi","status_code":200}]}`)
	}))

	page, err := b.Fetch(context.Background(), "https://target.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HTML != "<html>hi</html>" || page.Markdown != "# hi" {
		t.Errorf("unexpected page content: %+v", page)
	}
	if page.Via != "browser" {
		t.Errorf("expected via=browser, got %s", page.Via)
	}
}

func TestBrowserClient_MarkdownObjectShape(t *testing.T) {
	b := newBrowserTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"url":"u","html":"<p>x</p>","markdown":{"raw_markdown":"raw text"},"status_code":200}]}`)
	}))

	page, err := b.Fetch(context.Background(), "https://target.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Markdown != "raw text" {
		t.Errorf("expected raw_markdown decoded, got %q", page.Markdown)
	}
}

func TestBrowserClient_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	b := newBrowserTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"results":[{"url":"u","html":"<p>ok</p>","markdown":"ok","status_code":200}]}`)
	}))

	page, err := b.Fetch(context.Background(), "https://target.example")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if page.HTML != "<p>ok</p>" {
		t.Errorf("unexpected content after retry: %q", page.HTML)
	}
}

func TestBrowserClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	b := newBrowserTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := b.Fetch(context.Background(), "https://target.example")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", calls.Load())
	}
}

func TestBrowserClient_Timeout(t *testing.T) {
	// The handler must read the request body before stalling, or the server
	// never notices the client going away and Close hangs on the connection.
	unblock := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-unblock:
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(unblock) })

	b, err := NewBrowserClient(BrowserConfig{
		Endpoint:    ts.URL,
		PageTimeout: 50 * time.Millisecond,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = b.Fetch(context.Background(), "https://slow.example")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestBrowserClient_EmptyResults(t *testing.T) {
	b := newBrowserTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))

	_, err := b.Fetch(context.Background(), "https://target.example")
	if err == nil {
		t.Fatal("expected error on empty results")
	}
}
