// Package llm wraps the Gemini API behind the three judgment operations the
// pipeline needs: relevance filtering of search candidates, structured
// extraction of company records from page content, and contact enrichment
// from search snippets.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/oselabs/scout/internal/metrics"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// RequestsPerSecond throttles calls across all pipeline stages sharing
	// this client. <= 0 disables throttling.
	RequestsPerSecond float64

	Logger *slog.Logger
}

// Client is a thin Gemini wrapper shared by the relevance filter, the
// extractor, and the enrichment engine.
type Client struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// TransientError marks a failure worth retrying (rate limit, 5xx, network).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient llm failure: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// New creates a Gemini client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		client:  client,
		model:   cfg.Model,
		limiter: limiter,
		logger:  cfg.Logger,
	}, nil
}

// generate runs one structured-output call, retrying once on a transient
// failure. All three public operations funnel through here so throttling and
// retry policy stay in one place.
func (c *Client) generate(ctx context.Context, purpose, prompt string, schema *genai.Schema) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := c.client.Models.GenerateContent(
			ctx,
			c.model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{
				CandidateCount:   1,
				Temperature:      genai.Ptr[float32](0),
				ResponseMIMEType: "application/json",
				ResponseSchema:   schema,
			},
		)
		if err == nil {
			metrics.ModelCalls.WithLabelValues(purpose, "ok").Inc()
			return resp.Text(), nil
		}
		metrics.ModelCalls.WithLabelValues(purpose, "error").Inc()

		lastErr = classifyErr(err)
		var te *TransientError
		if !errors.As(lastErr, &te) {
			return "", lastErr
		}
		c.logger.Warn("transient gemini failure, retrying", "attempt", attempt, "err", err)

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransientError{Err: err}
	}
	return err
}

func trimJSON(s string) string {
	s = strings.TrimSpace(s)
	// Models occasionally fence their output despite the JSON response type.
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func decodeInto(raw string, v any) error {
	if err := json.Unmarshal([]byte(trimJSON(raw)), v); err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	return nil
}
