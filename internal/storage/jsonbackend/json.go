package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/oselabs/scout/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// record is the persisted NDJSON line. CreatedAt rides alongside the wire
// shape of the company so Query can apply the Since filter.
type record struct {
	Company   *storage.Company `json:"company"`
	CreatedAt time.Time        `json:"created_at"`
}

// New creates an NDJSON-backed storage.Backend, one record per line.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ndjson file: %w", err)
	}
	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, c *storage.Company) error {
	line, err := json.Marshal(record{Company: c, CreatedAt: c.CreatedAt})
	if err != nil {
		return fmt.Errorf("marshal company: %w", err)
	}
	line = append(line, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek ndjson end: %w", err)
	}
	if _, err := b.file.Write(line); err != nil {
		return fmt.Errorf("write ndjson record: %w", err)
	}
	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Company, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek ndjson start: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	var matched []*storage.Company

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.Company == nil {
			continue // skip malformed lines
		}
		c := rec.Company
		c.CreatedAt = rec.CreatedAt

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
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ndjson: %w", err)
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

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
