package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oselabs/scout/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	created_at TIMESTAMPTZ NOT NULL
);
`

// New creates a Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, c *storage.Company) error {
	query := `
	INSERT INTO companies (
		id, name, website, email, phone, address, description, source_url, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		website = EXCLUDED.website,
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		address = EXCLUDED.address,
		description = EXCLUDED.description,
		source_url = EXCLUDED.source_url
	`

	_, err := b.pool.Exec(ctx, query,
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

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Company, error) {
	query := `SELECT id, name, website, email, phone, address, description, source_url, created_at FROM companies WHERE 1=1`
	args := []any{}
	arg := 0

	next := func() string {
		arg++
		return fmt.Sprintf("$%d", arg)
	}

	if filter.Website != "" {
		query += ` AND website = ` + next()
		args = append(args, filter.Website)
	}
	if filter.SourceURL != "" {
		query += ` AND source_url = ` + next()
		args = append(args, filter.SourceURL)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ` + next()
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ` + next()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + next()
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
