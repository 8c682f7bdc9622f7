package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ContactFields holds enrichment output for one company.
type ContactFields struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Website     string `json:"website"`
	Description string `json:"description"`
}

var contactSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"email":       {Type: genai.TypeString},
		"phone":       {Type: genai.TypeString},
		"address":     {Type: genai.TypeString},
		"website":     {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
	},
	Required: []string{"email", "phone", "address", "website", "description"},
}

// snippetBudget bounds total snippet context per enrichment call.
const snippetBudget = 10000

const enrichPrompt = `You consolidate contact information for the company %q from search result snippets.

Extract email, phone, address, website and a short description (at most three
sentences). Prefer official or primary contact details. Use an empty string
for anything the snippets do not state; never invent values.

Snippets:
%s`

// EnrichContact asks the model to consolidate contact details for a company
// from search snippets.
func (c *Client) EnrichContact(ctx context.Context, name string, snippets []string) (*ContactFields, error) {
	if len(snippets) == 0 {
		return &ContactFields{}, nil
	}

	joined := strings.Join(snippets, "\n\n")
	if len(joined) > snippetBudget {
		joined = joined[:snippetBudget]
	}

	raw, err := c.generate(ctx, "enrich", fmt.Sprintf(enrichPrompt, name, joined), contactSchema)
	if err != nil {
		return nil, fmt.Errorf("enrich contact: %w", err)
	}

	var out ContactFields
	if err := decodeInto(raw, &out); err != nil {
		return nil, fmt.Errorf("enrich contact: %w", err)
	}
	return &out, nil
}
