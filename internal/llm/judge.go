package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/oselabs/scout/internal/search"
	"google.golang.org/genai"
)

var indicesSchema = &genai.Schema{
	Type:  genai.TypeArray,
	Items: &genai.Schema{Type: genai.TypeInteger},
}

const judgeSystem = `You filter search results for a company-contact discovery tool.
The user is searching for: %q

Keep results likely to contain companies, business directories, supplier or
distributor listings, B2B marketplaces, or company profile pages with contact
details matching the query. Drop personal social profiles, job boards, generic
news or blog posts without listings, encyclopedia pages, and login or error
pages.

Return ONLY a JSON array with the indices of the relevant results, e.g. [0,2,4].
Return [] if none are relevant.`

// JudgeCandidates asks the model which candidates fit the query's intent and
// returns their indices, in ascending order, restricted to the valid range.
func (c *Client) JudgeCandidates(ctx context.Context, query string, candidates []search.Candidate) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, judgeSystem, query)
	b.WriteString("\n\nSearch results:\n")
	for i, cand := range candidates {
		snippet := cand.Snippet
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		fmt.Fprintf(&b, "%d. URL: %s\n   Title: %s\n   Snippet: %s\n", i, cand.URL, cand.Title, snippet)
	}

	raw, err := c.generate(ctx, "judge", b.String(), indicesSchema)
	if err != nil {
		return nil, fmt.Errorf("judge candidates: %w", err)
	}

	var indices []int
	if err := decodeInto(raw, &indices); err != nil {
		return nil, fmt.Errorf("judge candidates: %w", err)
	}

	// Drop out-of-range or duplicate indices; keep input order.
	seen := make(map[int]struct{}, len(indices))
	valid := indices[:0]
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		valid = append(valid, idx)
	}

	c.logger.Debug("relevance judged", "candidates", len(candidates), "accepted", len(valid))
	return valid, nil
}
