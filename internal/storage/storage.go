package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Company is a single extracted contact record. Name and Website establish
// identity; every other field is optional and may be filled in later by
// enrichment. Fields are merged, never silently overwritten: a non-empty
// value always wins over an empty one.
type Company struct {
	ID          string
	Name        string
	Website     string
	Email       string
	Phone       string
	Address     string
	Description string
	SourceURL   string
	CreatedAt   time.Time
}

// HasIdentity reports whether the record carries enough information to be
// worth keeping. Pages that yield neither a name nor a website are skipped.
func (c *Company) HasIdentity() bool {
	return strings.TrimSpace(c.Name) != "" || strings.TrimSpace(c.Website) != ""
}

// HasContact reports whether at least one direct contact channel is known.
// Records failing this check are candidates for enrichment.
func (c *Company) HasContact() bool {
	return c.Email != "" || c.Phone != ""
}

// MergeFrom copies non-empty fields of other into empty fields of c.
// Existing values are never replaced.
func (c *Company) MergeFrom(other *Company) {
	if other == nil {
		return
	}
	if c.Name == "" {
		c.Name = other.Name
	}
	if c.Website == "" {
		c.Website = other.Website
	}
	if c.Email == "" {
		c.Email = other.Email
	}
	if c.Phone == "" {
		c.Phone = other.Phone
	}
	if c.Address == "" {
		c.Address = other.Address
	}
	if c.Description == "" {
		c.Description = other.Description
	}
	if c.SourceURL == "" {
		c.SourceURL = other.SourceURL
	}
}

// companyJSON is the wire shape of a Company. Optional fields marshal as null
// when absent, matching the streaming and download contracts.
type companyJSON struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Website     *string `json:"website"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
	SourceURL   string  `json:"source_url"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c Company) MarshalJSON() ([]byte, error) {
	return json.Marshal(companyJSON{
		ID:          c.ID,
		Name:        c.Name,
		Website:     nullable(c.Website),
		Email:       nullable(c.Email),
		Phone:       nullable(c.Phone),
		Address:     nullable(c.Address),
		Description: nullable(c.Description),
		SourceURL:   c.SourceURL,
	})
}

func (c *Company) UnmarshalJSON(data []byte) error {
	var v companyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	c.ID = v.ID
	c.Name = v.Name
	c.Website = deref(v.Website)
	c.Email = deref(v.Email)
	c.Phone = deref(v.Phone)
	c.Address = deref(v.Address)
	c.Description = deref(v.Description)
	c.SourceURL = v.SourceURL
	return nil
}

// Filter selects companies when querying a backend.
type Filter struct {
	Website   string
	SourceURL string
	Since     *time.Time
	Limit     int
	Offset    int
}

// Backend persists completed result sets. The pipeline itself holds no
// durable state; a backend is an optional sink wired in by the caller.
type Backend interface {
	Save(ctx context.Context, company *Company) error
	Query(ctx context.Context, filter Filter) ([]*Company, error)
	Close() error
}
