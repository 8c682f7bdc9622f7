package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oselabs/scout/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	website TEXT,
	email TEXT,
	phone TEXT,
	address TEXT,
	description TEXT,
	source_url TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// New creates a SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, c *storage.Company) error {
	query := `
	INSERT INTO companies (
		id, name, website, email, phone, address, description, source_url, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		website = excluded.website,
		email = excluded.email,
		phone = excluded.phone,
		address = excluded.address,
		description = excluded.description,
		source_url = excluded.source_url
	`

	_, err := b.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Website,
		c.Email,
		c.Phone,
		c.Address,
		c.Description,
		c.SourceURL,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Company, error) {
	query := `SELECT id, name, website, email, phone, address, description, source_url, created_at FROM companies WHERE 1=1`
	args := []any{}

	if filter.Website != "" {
		query += ` AND website = ?`
		args = append(args, filter.Website)
	}
	if filter.SourceURL != "" {
		query += ` AND source_url = ?`
		args = append(args, filter.SourceURL)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var results []*storage.Company
	for rows.Next() {
		var c storage.Company
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Website, &c.Email, &c.Phone,
			&c.Address, &c.Description, &c.SourceURL, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		results = append(results, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
