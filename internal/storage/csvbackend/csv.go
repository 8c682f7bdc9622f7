package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/oselabs/scout/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order.
var headers = []string{
	"id",
	"name",
	"website",
	"email",
	"phone",
	"address",
	"description",
	"source_url",
	"created_at",
}

// New creates a CSV-backed storage.Backend. The file is created if missing
// and appended to otherwise; a header row is written only for empty files.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, c *storage.Company) error {
	record := []string{
		c.ID,
		c.Name,
		c.Website,
		c.Email,
		c.Phone,
		c.Address,
		c.Description,
		c.SourceURL,
		c.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (Query seeks around)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek csv end: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Company, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek csv start: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	// Header row
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []*storage.Company{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.Company

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, record[8])

		c := &storage.Company{
			ID:          record[0],
			Name:        record[1],
			Website:     record[2],
			Email:       record[3],
			Phone:       record[4],
			Address:     record[5],
			Description: record[6],
			SourceURL:   record[7],
			CreatedAt:   createdAt,
		}

		if filter.Website != "" && c.Website != filter.Website {
			continue
		}
		if filter.SourceURL != "" && c.SourceURL != filter.SourceURL {
			continue
		}
		if filter.Since != nil && c.CreatedAt.Before(*filter.Since) {
			continue
		}

		matched = append(matched, c)
	}

	// Newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*storage.Company{}, nil
		}
		matched = matched[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
