package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"
)

// maxSitemapURLs caps how much of a sitemap is scanned per site; contact
// pages sit near the top of any sane sitemap.
const maxSitemapURLs = 500

// contactPathHints are path fragments that usually mark a contact or
// company-info page.
var contactPathHints = []string{"contact", "about", "impressum", "imprint", "kontakt"}

// ContactLocator discovers likely contact pages on a company's own site by
// reading the sitemaps declared in its robots.txt. The enrichment engine uses
// it to find a page worth re-extracting before falling back to search
// snippets.
type ContactLocator struct {
	fetcher *DirectFetcher
	logger  *slog.Logger
}

// NewContactLocator creates a locator backed by the given direct fetcher.
func NewContactLocator(fetcher *DirectFetcher, logger *slog.Logger) *ContactLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactLocator{fetcher: fetcher, logger: logger}
}

// Locate returns candidate contact-page URLs for the given website, best
// match first. An empty result is normal: many sites declare no sitemap.
func (l *ContactLocator) Locate(ctx context.Context, website string) ([]string, error) {
	host, err := siteRoot(website)
	if err != nil {
		return nil, err
	}

	gate := l.fetcher.robots
	if gate == nil {
		gate = newRobotsGate(l.fetcher.client, l.fetcher.config.UAPool.GetSequential(), l.logger)
	}

	var matches []string
	for _, sm := range gate.sitemaps(ctx, host) {
		urls, err := l.readSitemap(ctx, sm)
		if err != nil {
			l.logger.Debug("sitemap unreadable", "url", sm, "err", err)
			continue
		}
		for _, u := range urls {
			if isContactPath(u) {
				matches = append(matches, u)
			}
		}
		if len(matches) > 0 {
			break
		}
	}

	return matches, nil
}

// readSitemap parses a sitemap or sitemap index, following nested maps one
// level deep.
func (l *ContactLocator) readSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	status, body, err := l.fetcher.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("sitemap returned status %d", status)
	}

	var urls []string
	err = sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		if len(urls) >= maxSitemapURLs {
			return fmt.Errorf("sitemap truncated")
		}
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	// Possibly a sitemap index.
	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		if len(urls) > 0 {
			return urls, nil
		}
		return nil, fmt.Errorf("not a sitemap or sitemap index")
	}

	for _, nestedURL := range nested {
		status, body, err := l.fetcher.get(ctx, nestedURL)
		if err != nil || status >= 400 {
			continue
		}
		_ = sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
			if len(urls) >= maxSitemapURLs {
				return fmt.Errorf("sitemap truncated")
			}
			urls = append(urls, e.GetLocation())
			return nil
		})
		if len(urls) >= maxSitemapURLs {
			break
		}
	}

	return urls, nil
}

func isContactPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, hint := range contactPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

// siteRoot normalizes a website value to "scheme://host".
func siteRoot(website string) (string, error) {
	w := strings.TrimSpace(website)
	if w == "" {
		return "", fmt.Errorf("empty website")
	}
	if !strings.Contains(w, "://") {
		w = "https://" + w
	}
	u, err := url.Parse(w)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid website %q", website)
	}
	return u.Scheme + "://" + u.Host, nil
}
