package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/oselabs/scout/pkg/httpclient"
	"github.com/temoto/robotstxt"
)

// robotsGate caches per-host robots.txt and answers allow/deny questions for
// direct fetches. Unreachable or unparseable robots.txt defaults to allow.
type robotsGate struct {
	client    *httpclient.Client
	userAgent string
	logger    *slog.Logger
	mu        sync.RWMutex
	cache     map[string]*robotstxt.RobotsData
}

func newRobotsGate(client *httpclient.Client, userAgent string, logger *slog.Logger) *robotsGate {
	if userAgent == "" {
		userAgent = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &robotsGate{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

func (r *robotsGate) isAllowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	host := u.Scheme + "://" + u.Host

	data, err := r.getOrFetch(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	return data.FindGroup(r.userAgent).Test(u.Path), nil
}

// sitemaps returns the sitemap URLs declared in the host's robots.txt.
func (r *robotsGate) sitemaps(ctx context.Context, host string) []string {
	data, err := r.getOrFetch(ctx, host)
	if err != nil || data == nil {
		return nil
	}
	return data.Sitemaps
}

func (r *robotsGate) getOrFetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()

	if exists {
		return data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if data, exists = r.cache[host]; exists {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// No robots.txt means no restrictions
		r.cache[host] = nil
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache[host] = parsed
	return parsed, nil
}
