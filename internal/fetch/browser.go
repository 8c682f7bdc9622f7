package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oselabs/scout/pkg/httpclient"
)

// ensure BrowserClient implements ScriptedProvider
var _ ScriptedProvider = (*BrowserClient)(nil)

// scrollScript nudges lazy-loading pages before capture.
const scrollScript = "const scrollDown = async () => { window.scrollBy(0, window.innerHeight); }; scrollDown();"

// BrowserClient drives a remote browser-automation service (Crawl4AI-style
// HTTP contract): it POSTs a crawl request and receives rendered HTML plus a
// markdown conversion. The service owns the actual browser; this client only
// speaks the request/response protocol.
type BrowserClient struct {
	endpoint    string
	client      *httpclient.Client
	pageTimeout time.Duration
	userAgent   string
	logger      *slog.Logger
}

// BrowserConfig for the browser-automation client.
type BrowserConfig struct {
	// Endpoint is the crawl URL, e.g. "https://crawler.internal/crawl".
	Endpoint string
	// PageTimeout is the per-page fetch budget, browser rendering included.
	PageTimeout time.Duration
	UserAgent   string
	Logger      *slog.Logger
}

// NewBrowserClient creates a client for the browser-automation service.
func NewBrowserClient(cfg BrowserConfig) (*BrowserClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("browser service endpoint is required")
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.PageTimeout + 10*time.Second,
		MaxRedirects: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("create browser client: %w", err)
	}

	return &BrowserClient{
		endpoint:    cfg.Endpoint,
		client:      client,
		pageTimeout: cfg.PageTimeout,
		userAgent:   cfg.UserAgent,
		logger:      cfg.Logger,
	}, nil
}

type crawlRequest struct {
	URLs               []string `json:"urls"`
	Priority           int      `json:"priority"`
	BrowserType        string   `json:"browser_type"`
	Headless           bool     `json:"headless"`
	ViewportWidth      int      `json:"viewport_width"`
	ViewportHeight     int      `json:"viewport_height"`
	JSCode             []string `json:"js_code"`
	WaitFor            string   `json:"wait_for"`
	DelayBeforeReturn  int      `json:"delay_before_return"`
	PageTimeout        int      `json:"page_timeout"`
	Magic              bool     `json:"magic"`
	WordCountThreshold int      `json:"word_count_threshold"`
	UserAgent          string   `json:"user_agent"`
}

type crawlResult struct {
	URL        string          `json:"url"`
	HTML       string          `json:"html"`
	Markdown   json.RawMessage `json:"markdown"`
	StatusCode int             `json:"status_code"`
}

type crawlResponse struct {
	Results []crawlResult `json:"results"`
}

// Fetch retrieves one rendered page through the browser service.
func (b *BrowserClient) Fetch(ctx context.Context, url string) (*Page, error) {
	return b.FetchWithScripts(ctx, url, nil)
}

// FetchWithScripts retrieves a page after running the given scripts in it.
// A transient failure (network error or 5xx) is retried once.
func (b *BrowserClient) FetchWithScripts(ctx context.Context, url string, scripts []string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, b.pageTimeout)
	defer cancel()

	start := time.Now()

	var page *Page
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		page, err = b.crawlOnce(ctx, url, scripts)
		if err == nil {
			break
		}
		if !isTransient(err) || ctx.Err() != nil {
			break
		}
		b.logger.Warn("browser fetch failed, retrying", "url", url, "err", err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}

	page.Duration = time.Since(start)
	return page, nil
}

func (b *BrowserClient) crawlOnce(ctx context.Context, url string, scripts []string) (*Page, error) {
	payload := crawlRequest{
		URLs:               []string{url},
		Priority:           20,
		BrowserType:        "chromium",
		Headless:           true,
		ViewportWidth:      1920,
		ViewportHeight:     1080,
		JSCode:             append([]string{scrollScript}, scripts...),
		WaitFor:            "networkidle",
		DelayBeforeReturn:  3000,
		PageTimeout:        int(b.pageTimeout.Milliseconds()),
		Magic:              false, // raw markdown/html is more reliable without it
		WordCountThreshold: 1,
		UserAgent:          b.userAgent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("crawl request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	var decoded crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode crawl response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, fmt.Errorf("browser service returned no results for %s", url)
	}

	r := decoded.Results[0]
	return &Page{
		URL:        url,
		StatusCode: r.StatusCode,
		HTML:       r.HTML,
		Markdown:   decodeMarkdown(r.Markdown),
		Via:        "browser",
	}, nil
}

// decodeMarkdown tolerates both wire shapes the service emits: a plain string
// or an object carrying raw_markdown.
func decodeMarkdown(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		RawMarkdown string `json:"raw_markdown"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.RawMarkdown
	}
	return ""
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("browser service returned status %d", e.code)
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
