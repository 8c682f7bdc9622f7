package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// CompanyFields is one company as the model reports it.
type CompanyFields struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// Extraction is the structured result of one page analysis. A directory page
// can list many companies; the pagination hints let the crawler walk to the
// next page either by URL or by clicking a selector.
type Extraction struct {
	Companies          []CompanyFields `json:"companies"`
	NextPageURL        string          `json:"next_page_url"`
	PaginationSelector string          `json:"pagination_selector"`
}

var companySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":        {Type: genai.TypeString},
		"website":     {Type: genai.TypeString},
		"email":       {Type: genai.TypeString},
		"phone":       {Type: genai.TypeString},
		"address":     {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
	},
	Required: []string{"name"},
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"companies":           {Type: genai.TypeArray, Items: companySchema},
		"next_page_url":       {Type: genai.TypeString},
		"pagination_selector": {Type: genai.TypeString},
	},
	Required: []string{"companies"},
}

// contentBudget bounds how much page text goes into one extraction prompt.
const contentBudget = 24000

const extractPrompt = `You extract company contact records from a web page for the search query %q.

From the page content below, list every company or business relevant to the
query. For each, fill name, website, email, phone, address, description with
what the page states; use an empty string for anything not present. Do not
invent values.

If the page is paginated, set next_page_url to the absolute URL of the next
page, or set pagination_selector to a CSS selector for the next-page control
when the URL does not change. Leave both empty otherwise.

Page content:
%s`

// ExtractCompanies analyzes fetched page content. content should be the
// rendered markdown when available; html is only consulted for pagination
// controls and may be empty.
func (c *Client) ExtractCompanies(ctx context.Context, content, html, query string) (*Extraction, error) {
	if strings.TrimSpace(content) == "" {
		content = html
	}
	if len(content) > contentBudget {
		content = content[:contentBudget]
	}

	prompt := fmt.Sprintf(extractPrompt, query, content)
	if html != "" && len(html) < 8000 {
		prompt += "\n\nRaw HTML (for pagination controls only):\n" + html
	}

	raw, err := c.generate(ctx, "extract", prompt, extractionSchema)
	if err != nil {
		return nil, fmt.Errorf("extract companies: %w", err)
	}

	var out Extraction
	if err := decodeInto(raw, &out); err != nil {
		return nil, fmt.Errorf("extract companies: %w", err)
	}

	c.logger.Debug("page extracted",
		"companies", len(out.Companies),
		"next_page", out.NextPageURL != "",
		"selector", out.PaginationSelector != "",
	)
	return &out, nil
}
