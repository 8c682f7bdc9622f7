package extract

import (
	"context"
	"testing"

	"github.com/oselabs/scout/internal/fetch"
)

const contactPageHTML = `<!DOCTYPE html>
<html>
<head>
<title>Acme Widgets | Contact Us</title>
<meta property="og:site_name" content="Acme Widgets">
<meta name="description" content="Acme Widgets builds industrial widgets. Family owned since 1952. Call us today.">
</head>
<body>
<a href="mailto:info@acme.example?subject=hi">Email us</a>
<a href="tel:+1-555-0100">Call us</a>
<a rel="next" href="/page/2">Next</a>
</body>
</html>`

func TestHeuristicExtractor_Extract(t *testing.T) {
	h := NewHeuristicExtractor()
	page := &fetch.Page{URL: "https://acme.example/contact", HTML: contactPageHTML}

	result, err := h.Extract(context.Background(), page, "widget makers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(result.Companies))
	}

	c := result.Companies[0]
	if c.Name != "Acme Widgets" {
		t.Errorf("expected name from og:site_name, got %q", c.Name)
	}
	if c.Email != "info@acme.example" {
		t.Errorf("expected mailto target without query, got %q", c.Email)
	}
	if c.Phone != "+1-555-0100" {
		t.Errorf("expected tel target, got %q", c.Phone)
	}
	if c.Website != "https://acme.example" {
		t.Errorf("expected site origin as website, got %q", c.Website)
	}
	if c.Description == "" {
		t.Errorf("expected meta description")
	}
	if c.SourceURL != page.URL {
		t.Errorf("expected source url %q, got %q", page.URL, c.SourceURL)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamp set")
	}

	if result.NextPageURL != "https://acme.example/page/2" {
		t.Errorf("expected rel=next resolved against page url, got %q", result.NextPageURL)
	}
}

func TestHeuristicExtractor_TitleFallback(t *testing.T) {
	h := NewHeuristicExtractor()
	page := &fetch.Page{
		URL:  "https://bolt.example/",
		HTML: `<html><head><title>Bolt Fasteners - Home</title></head><body></body></html>`,
	}

	result, err := h.Extract(context.Background(), page, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(result.Companies))
	}
	if got := result.Companies[0].Name; got != "Bolt Fasteners" {
		t.Errorf("expected title suffix stripped, got %q", got)
	}
}

func TestHeuristicExtractor_NoIdentity(t *testing.T) {
	h := NewHeuristicExtractor()
	page := &fetch.Page{URL: "https://x.example", HTML: `<html><body><p>nothing here</p></body></html>`}

	result, err := h.Extract(context.Background(), page, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Website origin alone still counts as identity per HasIdentity; pages
	// with neither a title nor a parseable URL yield nothing.
	if len(result.Companies) > 1 {
		t.Fatalf("expected at most 1 company, got %d", len(result.Companies))
	}
}

func TestFirstSentences(t *testing.T) {
	s := "One. Two! Three? Four."
	if got := firstSentences(s, 2); got != "One. Two!" {
		t.Errorf("expected two sentences, got %q", got)
	}
	if got := firstSentences("no terminator", 3); got != "no terminator" {
		t.Errorf("expected passthrough, got %q", got)
	}
}
