package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oselabs/scout/pkg/httpclient"
	"github.com/oselabs/scout/pkg/useragent"
)

// maxPages caps pagination so a generous limit cannot walk the whole index.
const maxPages = 6

// ensure SearxNG implements Provider
var _ Provider = (*SearxNG)(nil)

// SearxNG queries a SearxNG instance's JSON API. Results are paginated until
// the requested limit is reached, the instance runs dry, or maxPages is hit.
type SearxNG struct {
	endpoint string
	client   *httpclient.Client
	uaPool   *useragent.Pool
	logger   *slog.Logger
}

// Config for the SearxNG client.
type Config struct {
	// Endpoint is the full search URL, e.g. "https://searx.example.org/search".
	Endpoint string
	Timeout  time.Duration
	UAPool   *useragent.Pool
	Logger   *slog.Logger
}

// NewSearxNG creates a SearxNG search provider.
func NewSearxNG(cfg Config) (*SearxNG, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("searxng endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	return &SearxNG{
		endpoint: cfg.Endpoint,
		client:   client,
		uaPool:   cfg.UAPool,
		logger:   cfg.Logger,
	}, nil
}

type searxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search collects up to limit unique candidates. A failure on the first page
// is fatal (wrapped ErrUpstream); later pages degrade to a partial result.
func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}

	var candidates []Candidate
	seen := make(map[string]struct{})

	for page := 1; len(candidates) < limit && page <= maxPages; page++ {
		results, err := s.fetchPage(ctx, query, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
			}
			s.logger.Warn("search pagination aborted", "page", page, "err", err)
			break
		}

		if len(results) == 0 {
			break
		}

		added := 0
		for _, c := range results {
			if c.URL == "" {
				continue
			}
			if _, dup := seen[c.URL]; dup {
				continue
			}
			seen[c.URL] = struct{}{}
			candidates = append(candidates, c)
			added++
		}

		// Instances sometimes repeat results past the last real page.
		if added == 0 {
			break
		}
	}

	s.logger.Debug("search complete", "query", query, "candidates", len(candidates))

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *SearxNG) fetchPage(ctx context.Context, query string, page int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("pageno", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	// Some public instances 403 non-browser agents.
	req.Header.Set("User-Agent", s.uaPool.GetSequential())
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Candidate, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, Candidate{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return out, nil
}
