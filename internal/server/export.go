package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/oselabs/scout/internal/storage"
)

// exportColumns is the download column set, in order. Downloads expose the
// record fields only; internal IDs and timestamps stay out.
var exportColumns = []string{"name", "website", "email", "phone", "address", "description", "source_url"}

// WriteCSV writes companies as CSV with a header row. Missing fields become
// empty cells.
func WriteCSV(w io.Writer, companies []*storage.Company) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range companies {
		row := []string{c.Name, c.Website, c.Email, c.Phone, c.Address, c.Description, c.SourceURL}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes companies as a JSON array. Missing fields serialize as
// null.
func WriteJSON(w io.Writer, companies []*storage.Company) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(companies); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}
