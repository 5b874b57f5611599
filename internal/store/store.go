// Package store persists the canonical parts catalog. Two implementations
// are provided: SQLite (modernc, for single-node deployments and tests) and
// Postgres (pgxpool). Ingestion mutates the catalog exclusively through a
// Batch so each scraped batch commits or rolls back as a unit.
package store

import (
	"context"

	"github.com/sparehub/harvester/internal/model"
)

// PartFilter specifies criteria for listing parts.
type PartFilter struct {
	Query    string `json:"query,omitempty"`    // matches reference or name
	Category string `json:"category,omitempty"` // exact category match
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the harvester.
//
// Lookup methods return (nil, nil) when no row matches; errors are reserved
// for storage failures.
type Store interface {
	// Suppliers
	GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error)
	CreateSupplier(ctx context.Context, name, website string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)

	// Parts (read side, consumed by the query API)
	GetPartByReference(ctx context.Context, reference string) (*model.Part, error)
	ListParts(ctx context.Context, filter PartFilter) ([]model.Part, error)
	DeletePart(ctx context.Context, id string) error
	ListAvailability(ctx context.Context, partID string) ([]model.Availability, error)

	// API keys
	CreateAPIKey(ctx context.Context, name, email string) (*model.APIKey, error)
	GetAPIKey(ctx context.Context, key string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error

	// Begin opens a batch transaction for ingestion.
	Begin(ctx context.Context) (Batch, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Batch is one ingestion transaction. All writes buffer until Commit; a
// failed Commit (or Rollback) leaves no trace of the batch. Rollback after
// a successful Commit is a no-op, so callers can defer it unconditionally.
type Batch interface {
	GetPartByReference(ctx context.Context, reference string) (*model.Part, error)
	// InsertPart writes the part and flushes it so its ID is usable by
	// availability writes within the same batch.
	InsertPart(ctx context.Context, p *model.Part) error
	UpdatePart(ctx context.Context, p *model.Part) error

	GetAvailability(ctx context.Context, partID, supplierID string) (*model.Availability, error)
	InsertAvailability(ctx context.Context, a *model.Availability) error
	UpdateAvailability(ctx context.Context, a *model.Availability) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
