// Package fetch retrieves rendered page content for the crawler. The primary
// path is a remote browser-automation service; a direct HTTP fetcher with
// browser fingerprinting serves as fallback when no service is configured or
// the service is down.
package fetch

import (
	"context"
	"errors"
	"time"
)

// Page is the outcome of fetching one URL.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	// Markdown is the rendered-page markdown when the browser service
	// produced one; empty for direct fetches.
	Markdown string
	// Challenged marks pages where a bot-protection vendor intercepted the
	// request instead of serving content.
	Challenged   bool
	ChallengeSrc string
	Via          string // "browser" or "direct"
	Duration     time.Duration
}

// Content returns the best text for extraction: markdown when it is
// substantial, raw HTML otherwise.
func (p *Page) Content() string {
	if len(p.Markdown) >= 100 {
		return p.Markdown
	}
	return p.HTML
}

// ErrTimeout marks a fetch that exceeded its per-page budget.
var ErrTimeout = errors.New("page fetch timed out")

// Provider fetches a single URL.
type Provider interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ScriptedProvider additionally supports running scripts in the page before
// capture, used to click pagination controls that do not change the URL.
type ScriptedProvider interface {
	Provider
	FetchWithScripts(ctx context.Context, url string, scripts []string) (*Page, error)
}
