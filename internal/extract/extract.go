package extract

import (
	"context"

	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/storage"
)

// Result is the outcome of extracting one fetched page: any companies found
// plus hints for walking a paginated listing. NextPageURL is preferred; when
// navigation happens in-page, PaginationSelector names the control to click.
type Result struct {
	Companies          []*storage.Company
	NextPageURL        string
	PaginationSelector string
}

// Extractor turns a fetched page into company records.
type Extractor interface {
	Extract(ctx context.Context, page *fetch.Page, query string) (*Result, error)
}
