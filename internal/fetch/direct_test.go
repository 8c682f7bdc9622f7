package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oselabs/scout/internal/fingerprint"
)

func newDirectTest(t *testing.T, cfg DirectConfig) *DirectFetcher {
	t.Helper()
	// Plain Go TLS keeps httptest servers happy.
	cfg.Fingerprint = fingerprint.ProfileGo
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	f, err := NewDirectFetcher(cfg)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestDirectFetcher_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("expected browser user agent, got %q", ua)
		}
		fmt.Fprint(w, "<html><body>content</body></html>")
	}))
	defer ts.Close()

	f := newDirectTest(t, DirectConfig{Timeout: 5 * time.Second})

	page, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != 200 || page.HTML == "" {
		t.Errorf("unexpected page: %+v", page)
	}
	if page.Via != "direct" {
		t.Errorf("expected via=direct, got %s", page.Via)
	}
	if page.Challenged {
		t.Errorf("clean page flagged as challenged")
	}
}

func TestDirectFetcher_DetectsChallenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "cf-browser-verification")
	}))
	defer ts.Close()

	f := newDirectTest(t, DirectConfig{})

	page, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Challenged || page.ChallengeSrc != "Cloudflare" {
		t.Errorf("expected Cloudflare challenge flagged, got %+v", page)
	}
}

func TestDirectFetcher_RespectsRobots(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer ts.Close()

	f := newDirectTest(t, DirectConfig{RespectRobots: true})

	if _, err := f.Fetch(context.Background(), ts.URL+"/public"); err != nil {
		t.Fatalf("allowed path should fetch: %v", err)
	}

	_, err := f.Fetch(context.Background(), ts.URL+"/private/page")
	if err == nil {
		t.Fatal("expected robots denial")
	}
	if !errors.Is(err, ErrRobotsDisallowed) {
		t.Errorf("expected ErrRobotsDisallowed, got %v", err)
	}
}

func TestDirectFetcher_RobotsUnavailableAllows(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer ts.Close()

	f := newDirectTest(t, DirectConfig{RespectRobots: true})

	if _, err := f.Fetch(context.Background(), ts.URL+"/anything"); err != nil {
		t.Fatalf("missing robots.txt must not block fetches: %v", err)
	}
}

func TestDirectFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	f := newDirectTest(t, DirectConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, ts.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
