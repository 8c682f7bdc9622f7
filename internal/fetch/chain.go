package fetch

import (
	"context"
	"log/slog"
)

// ensure Chain implements ScriptedProvider
var _ ScriptedProvider = (*Chain)(nil)

// Chain routes fetches to the browser service when one is configured and
// falls back to the direct fetcher when the service fails. A direct fetch
// that comes back challenged is retried through the browser service, since
// the challenge usually clears under a real browser.
type Chain struct {
	browser ScriptedProvider
	direct  Provider
	logger  *slog.Logger
}

// NewChain builds a provider chain. Either fetcher may be nil, but not both.
func NewChain(browser ScriptedProvider, direct Provider, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{browser: browser, direct: direct, logger: logger}
}

// Fetch retrieves a page through the preferred provider.
func (c *Chain) Fetch(ctx context.Context, url string) (*Page, error) {
	return c.FetchWithScripts(ctx, url, nil)
}

// FetchWithScripts retrieves a page, running scripts where the provider
// supports them. Scripts are dropped on the direct path.
func (c *Chain) FetchWithScripts(ctx context.Context, url string, scripts []string) (*Page, error) {
	if c.browser != nil {
		page, err := c.browser.FetchWithScripts(ctx, url, scripts)
		if err == nil {
			return page, nil
		}
		if c.direct == nil || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("browser fetch failed, falling back to direct", "url", url, "err", err)
	}

	page, err := c.direct.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if page.Challenged && c.browser != nil && ctx.Err() == nil {
		c.logger.Info("challenge detected, retrying through browser",
			"url", url, "source", page.ChallengeSrc)
		if retried, rerr := c.browser.FetchWithScripts(ctx, url, scripts); rerr == nil {
			return retried, nil
		}
	}

	return page, nil
}
