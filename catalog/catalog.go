// Package catalog defines the interfaces a Flight server reads its catalog
// from: catalogs contain schemas, schemas contain tables, and tables are
// scanned into Arrow record batches.
//
// All interfaces are goroutine-safe and honor context cancellation.
package catalog

import (
	"context"
)

// Catalog is the top-level metadata container.
type Catalog interface {
	// Schemas returns all schemas visible in this catalog.
	// Returns an empty slice (not nil) if there are none.
	Schemas(ctx context.Context) ([]Schema, error)

	// Schema returns a specific schema by name.
	// Returns (nil, nil) if the schema doesn't exist.
	Schema(ctx context.Context, name string) (Schema, error)
}

// VersionedCatalog is implemented by catalogs whose contents change over
// time. Clients compare versions to decide when to reload.
type VersionedCatalog interface {
	Catalog

	// Version returns the current catalog version and whether it never changes.
	Version(ctx context.Context) (version uint64, fixed bool, err error)
}

// Schema is a named group of tables.
type Schema interface {
	// Name returns the schema name. MUST be non-empty.
	Name() string

	// Comment returns optional schema documentation.
	Comment() string

	// Tables returns all tables in this schema.
	// Returns an empty slice (not nil) if there are none.
	Tables(ctx context.Context) ([]Table, error)

	// Table returns a specific table by name.
	// Returns (nil, nil) if the table doesn't exist.
	Table(ctx context.Context, name string) (Table, error)
}
