package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/oselabs/scout/internal/fetch"
	"github.com/oselabs/scout/internal/storage"
)

// ensure HeuristicExtractor implements Extractor
var _ Extractor = (*HeuristicExtractor)(nil)

// HeuristicExtractor pulls what the page markup states outright: the site
// name, mailto/tel links, the meta description, rel=next pagination. It
// produces at most one record per page and never guesses, so it is the
// fallback when model extraction is unavailable or fails.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a markup-based extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract parses the page HTML and assembles a single record from explicit
// markup signals. Pages with no recognizable identity yield no companies.
func (h *HeuristicExtractor) Extract(_ context.Context, page *fetch.Page, _ string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}

	company := &storage.Company{
		ID:        uuid.New().String(),
		SourceURL: page.URL,
		CreatedAt: time.Now().UTC(),
	}

	company.Name = pageName(doc)
	company.Website = siteOrigin(page.URL)
	company.Email = firstSchemeLink(doc, "mailto:")
	company.Phone = firstSchemeLink(doc, "tel:")
	company.Description = metaDescription(doc)

	result := &Result{NextPageURL: nextPageLink(doc, page.URL)}
	if company.HasIdentity() {
		result.Companies = []*storage.Company{company}
	}
	return result, nil
}

// pageName prefers og:site_name over the document title, and strips the
// " | Suffix" patterns titles carry.
func pageName(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name := strings.TrimSpace(v); name != "" {
			return name
		}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, sep := range []string{" | ", " – ", " - "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	return strings.TrimSpace(title)
}

func metaDescription(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		return strings.TrimSpace(firstSentences(v, 3))
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(firstSentences(v, 3))
	}
	return ""
}

// firstSchemeLink returns the target of the first anchor with the given URI
// scheme prefix, with the prefix and any query trimmed off.
func firstSchemeLink(doc *goquery.Document, scheme string) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(strings.ToLower(href), scheme) {
			return true
		}
		val := href[len(scheme):]
		if idx := strings.IndexByte(val, '?'); idx >= 0 {
			val = val[:idx]
		}
		if val = strings.TrimSpace(val); val != "" {
			found = val
			return false
		}
		return true
	})
	return found
}

// nextPageLink resolves rel=next pagination against the page URL.
func nextPageLink(doc *goquery.Document, pageURL string) string {
	href, ok := doc.Find(`link[rel="next"]`).Attr("href")
	if !ok {
		href, ok = doc.Find(`a[rel="next"]`).Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	next, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(next).String()
}

func siteOrigin(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// firstSentences keeps at most n sentences of s. Splitting is naive on
// terminal punctuation, which is fine for meta descriptions.
func firstSentences(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			count++
			if count >= n {
				return s[:i+1]
			}
		}
	}
	return s
}
