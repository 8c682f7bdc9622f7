package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/oselabs/scout/internal/storage"
)

// Summary contains aggregated metrics about a discovery run.
type Summary struct {
	Query          string
	TotalCompanies int
	WithEmail      int
	WithPhone      int
	WithAddress    int
	WithWebsite    int
	Domains        map[string]int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// GenerateSummary processes discovered companies into summary metrics.
func GenerateSummary(query string, companies []*storage.Company) Summary {
	s := Summary{
		Query:   query,
		Domains: make(map[string]int),
	}

	if len(companies) == 0 {
		return s
	}

	s.StartTime = companies[0].CreatedAt
	s.EndTime = companies[0].CreatedAt

	for _, c := range companies {
		s.TotalCompanies++
		if c.Email != "" {
			s.WithEmail++
		}
		if c.Phone != "" {
			s.WithPhone++
		}
		if c.Address != "" {
			s.WithAddress++
		}
		if c.Website != "" {
			s.WithWebsite++
		}
		if c.SourceURL != "" {
			s.Domains[hostOf(c.SourceURL)]++
		}

		if c.CreatedAt.Before(s.StartTime) {
			s.StartTime = c.CreatedAt
		}
		if c.CreatedAt.After(s.EndTime) {
			s.EndTime = c.CreatedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

func hostOf(rawURL string) string {
	u := rawURL
	if idx := indexAfterScheme(u); idx > 0 {
		u = u[idx:]
	}
	for i := 0; i < len(u); i++ {
		if u[i] == '/' || u[i] == '?' {
			return u[:i]
		}
	}
	return u
}

func indexAfterScheme(u string) int {
	for i := 0; i+2 < len(u); i++ {
		if u[i] == ':' && u[i+1] == '/' && u[i+2] == '/' {
			return i + 3
		}
	}
	return 0
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Scout Discovery Summary
-----------------------
Query:         {{.Query}}
Companies:     {{.TotalCompanies}}
With email:    {{.WithEmail}}
With phone:    {{.WithPhone}}
With address:  {{.WithAddress}}
With website:  {{.WithWebsite}}

Source hosts:
{{- range $host, $count := .Domains}}
  {{$host}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}
