package enrich

import (
	"testing"

	"github.com/oselabs/scout/internal/storage"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/about", "example.com"},
		{"http://example.com", "example.com"},
		{"example.com", "example.com"},
		{"WWW.Example.COM", "example.com"},
		{"https://example.com:8080/path?x=1", "example.com"},
		{"https://sub.example.com/", "sub.example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, c := range cases {
		if got := NormalizeDomain(c.in); got != c.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDedupKey(t *testing.T) {
	a := &storage.Company{Name: "Acme", Website: "https://www.acme.example/contact"}
	b := &storage.Company{Name: "ACME Inc", Website: "http://acme.example"}
	if DedupKey(a) != DedupKey(b) {
		t.Errorf("same domain should produce same key: %q vs %q", DedupKey(a), DedupKey(b))
	}

	// No website falls back to lowercased name.
	c := &storage.Company{Name: "  Bolt Fasteners "}
	if DedupKey(c) != "bolt fasteners" {
		t.Errorf("expected name fallback, got %q", DedupKey(c))
	}

	// Website beats name: same name, different domains stay distinct.
	d := &storage.Company{Name: "Acme", Website: "https://acme.example"}
	e := &storage.Company{Name: "Acme", Website: "https://acme-other.example"}
	if DedupKey(d) == DedupKey(e) {
		t.Errorf("different domains must not collide")
	}
}
