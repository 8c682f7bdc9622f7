package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/llm"
	"github.com/oselabs/scout/internal/storage"
)

// ensure LLMExtractor implements Extractor
var _ Extractor = (*LLMExtractor)(nil)

// CompanyModel is the slice of the model client the extractor needs.
type CompanyModel interface {
	ExtractCompanies(ctx context.Context, content, html, query string) (*llm.Extraction, error)
}

// LLMExtractor sends page content to the model for structured extraction and
// degrades to markup heuristics when the model is unavailable or errors out.
type LLMExtractor struct {
	model    CompanyModel
	fallback *HeuristicExtractor
	logger   *slog.Logger
}

// NewLLMExtractor creates an extractor. model may be nil, in which case every
// page goes through the heuristic path.
func NewLLMExtractor(model CompanyModel, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{
		model:    model,
		fallback: NewHeuristicExtractor(),
		logger:   logger,
	}
}

// Extract analyzes one page. Model failures are not fatal to the page: the
// heuristic extractor still gets a chance at it.
func (e *LLMExtractor) Extract(ctx context.Context, page *fetch.Page, query string) (*Result, error) {
	if e.model == nil {
		return e.fallback.Extract(ctx, page, query)
	}

	extraction, err := e.model.ExtractCompanies(ctx, page.Content(), page.HTML, query)
	if err != nil {
		e.logger.Warn("model extraction failed, using heuristics", "url", page.URL, "err", err)
		return e.fallback.Extract(ctx, page, query)
	}

	result := &Result{
		NextPageURL:        extraction.NextPageURL,
		PaginationSelector: extraction.PaginationSelector,
	}
	now := time.Now().UTC()
	for _, f := range extraction.Companies {
		company := &storage.Company{
			ID:          uuid.New().String(),
			Name:        strings.TrimSpace(f.Name),
			Website:     strings.TrimSpace(f.Website),
			Email:       strings.TrimSpace(f.Email),
			Phone:       strings.TrimSpace(f.Phone),
			Address:     strings.TrimSpace(f.Address),
			Description: strings.TrimSpace(f.Description),
			SourceURL:   page.URL,
			CreatedAt:   now,
		}
		if !company.HasIdentity() {
			continue
		}
		result.Companies = append(result.Companies, company)
	}
	return result, nil
}
