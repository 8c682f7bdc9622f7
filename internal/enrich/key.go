package enrich

import (
	"strings"

	"github.com/oselabs/scout/internal/storage"
)

// DedupKey identifies a company for duplicate collapsing. Two records are the
// same company when they resolve to the same website domain; records without
// a website fall back to the lowercased name.
func DedupKey(c *storage.Company) string {
	if domain := NormalizeDomain(c.Website); domain != "" {
		return domain
	}
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// NormalizeDomain reduces a website value to its bare domain: lowercased,
// scheme and leading www. stripped, path and port dropped. Returns "" for
// values with no usable host.
func NormalizeDomain(website string) string {
	d := strings.ToLower(strings.TrimSpace(website))
	if d == "" {
		return ""
	}
	if idx := strings.Index(d, "://"); idx >= 0 {
		d = d[idx+3:]
	}
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.IndexAny(d, "/?#"); idx >= 0 {
		d = d[:idx]
	}
	if idx := strings.IndexByte(d, ':'); idx >= 0 {
		d = d[:idx]
	}
	return strings.Trim(d, ".")
}
