package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oselabs/scout/internal/fingerprint"
	"github.com/oselabs/scout/pkg/httpclient"
	"github.com/oselabs/scout/pkg/proxy"
	"github.com/oselabs/scout/pkg/ratelimit"
	"github.com/oselabs/scout/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// ensure DirectFetcher implements Provider
var _ Provider = (*DirectFetcher)(nil)

// DirectConfig configures direct (non-browser-service) page fetches.
type DirectConfig struct {
	Timeout       time.Duration
	MaxRedirects  int
	UseCookieJar  bool
	ProxyPool     *proxy.Pool
	UAPool        *useragent.Pool
	Fingerprint   fingerprint.Profile
	Limiter       *ratelimit.Limiter
	RespectRobots bool
	Logger        *slog.Logger
}

// DirectFetcher fetches pages straight over HTTP with a browser-shaped TLS
// fingerprint and rotating User-Agents. It cannot execute JavaScript, so
// heavily dynamic pages come back thin; the orchestrator prefers the browser
// service when one is configured.
type DirectFetcher struct {
	config    DirectConfig
	client    *httpclient.Client
	robots    *robotsGate
	detectors []Detector
	logger    *slog.Logger
}

// NewDirectFetcher initializes a direct fetcher.
func NewDirectFetcher(cfg DirectConfig) (*DirectFetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// One transport for the fetcher's lifetime keeps connection pooling and
	// cookie jars working. Per-request proxy rotation goes through the
	// request context because mutating Transport.Proxy concurrently is not
	// safe.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	f := &DirectFetcher{
		config:    cfg,
		client:    client,
		detectors: DefaultDetectors(),
		logger:    cfg.Logger,
	}
	if cfg.RespectRobots {
		f.robots = newRobotsGate(client, cfg.UAPool.GetSequential(), cfg.Logger)
	}
	return f, nil
}

// ErrRobotsDisallowed marks URLs the target's robots.txt excludes.
var ErrRobotsDisallowed = errors.New("robots.txt disallows url")

// Fetch executes a GET against the target URL and wraps the response as a
// Page, running challenge detection over the result.
func (f *DirectFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if f.robots != nil {
		allowed, err := f.robots.isAllowed(ctx, targetURL)
		if err != nil {
			// fail open on robots.txt errors
			f.logger.Debug("robots check failed, allowing", "url", targetURL, "err", err)
		} else if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, targetURL)
		}
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, targetURL)
		}
		return nil, fmt.Errorf("fetch %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", targetURL, err)
	}

	page := &Page{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		Via:        "direct",
		Duration:   time.Since(start),
	}
	page.Challenged, page.ChallengeSrc = DetectChallenge(resp.StatusCode, resp.Header, body, f.detectors)

	return page, nil
}

// get is a plain fetch without robots gating or challenge detection, used
// internally for robots.txt and sitemap retrieval.
func (f *DirectFetcher) get(ctx context.Context, targetURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}
