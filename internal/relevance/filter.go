// Package relevance filters search candidates through an LLM judge before
// anything is crawled.
package relevance

import (
	"context"
	"log/slog"
	"sort"

	"github.com/oselabs/scout/internal/search"
)

// Judge decides which of a batch of candidates fit the query's intent,
// returning the indices of accepted candidates.
type Judge interface {
	JudgeCandidates(ctx context.Context, query string, candidates []search.Candidate) ([]int, error)
}

// Filter batches candidates to the judge. Batching keeps each request under
// upstream prompt-size limits; candidate order is preserved in the output.
type Filter struct {
	judge     Judge
	batchSize int
	failOpen  bool
	logger    *slog.Logger
}

// Config for the relevance filter.
type Config struct {
	// BatchSize caps candidates per judge call. Defaults to 20.
	BatchSize int
	// FailOpen accepts a batch wholesale when the judge call fails, trading
	// precision for availability: crawling a few irrelevant pages is cheaper
	// than losing the whole run to an LLM outage. When false, a failed
	// batch's candidates are dropped instead.
	FailOpen bool
	Logger   *slog.Logger
}

// New creates a relevance filter. A nil judge accepts everything.
func New(judge Judge, cfg Config) *Filter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Filter{
		judge:     judge,
		batchSize: cfg.BatchSize,
		failOpen:  cfg.FailOpen,
		logger:    cfg.Logger,
	}
}

// Filter returns the accepted subset of candidates, in input order. It never
// returns an error: judge failures degrade per the fail-open policy.
func (f *Filter) Filter(ctx context.Context, query string, candidates []search.Candidate) []search.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if f.judge == nil {
		return candidates
	}

	accepted := make([]search.Candidate, 0, len(candidates))

	for start := 0; start < len(candidates); start += f.batchSize {
		end := start + f.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		indices, err := f.judge.JudgeCandidates(ctx, query, batch)
		if err != nil {
			if f.failOpen {
				f.logger.Warn("relevance judge failed, accepting batch", "batch", start/f.batchSize, "err", err)
				accepted = append(accepted, batch...)
			} else {
				f.logger.Warn("relevance judge failed, dropping batch", "batch", start/f.batchSize, "err", err)
			}
			continue
		}

		// The judge reports indices in whatever order the model emitted them,
		// sometimes with repeats.
		sort.Ints(indices)
		prev := -1
		for _, idx := range indices {
			if idx >= 0 && idx < len(batch) && idx != prev {
				accepted = append(accepted, batch[idx])
				prev = idx
			}
		}
	}

	f.logger.Info("relevance filtering complete", "candidates", len(candidates), "accepted", len(accepted))
	return accepted
}
