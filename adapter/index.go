package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugr-lab/opal-airport/cache"
	"github.com/hugr-lab/opal-airport/naming"
	"github.com/hugr-lab/opal-airport/opal"
)

// Index maps relational (schema, table) names to remote tables.
type Index interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]TableName, error)
	Lookup(ctx context.Context, schema, table string) (TableRef, error)
	// Invalidate forces the next call to rebuild from the remote.
	Invalidate()
	// Version changes every time a new snapshot is published.
	Version() uint64
}

// DatasourceLister is the remote call CatalogIndex is built from.
type DatasourceLister interface {
	ListDatasources(ctx context.Context) ([]opal.Datasource, error)
}

// Snapshot is one consistent naming of the remote catalog. It is used in
// its entirety or not at all.
type Snapshot struct {
	schemas     []string
	datasources map[string]string
	tables      map[string][]string
	remote      map[TableName]string
}

func (s *Snapshot) empty() bool {
	return s == nil || len(s.schemas) == 0
}

// buildSnapshot names datasources and their tables in listing order.
func buildSnapshot(datasources []opal.Datasource) *Snapshot {
	s := &Snapshot{
		schemas:     make([]string, 0, len(datasources)),
		datasources: make(map[string]string, len(datasources)),
		tables:      make(map[string][]string, len(datasources)),
		remote:      make(map[TableName]string),
	}

	schemaNames := naming.NewResolver()
	for _, ds := range datasources {
		schema := schemaNames.Unique(ds.Name)
		s.schemas = append(s.schemas, schema)
		s.datasources[schema] = ds.Name

		tableNames := naming.NewResolver()
		tables := make([]string, 0, len(ds.Table))
		for _, remote := range ds.Table {
			table := tableNames.Unique(remote)
			tables = append(tables, table)
			s.remote[TableName{Schema: schema, Table: table}] = remote
		}
		s.tables[schema] = tables
	}
	return s
}

// CatalogIndex exposes Opal datasources as schemas and their value tables
// as tables. The snapshot is cached with a TTL; a refresh clears the cache
// before fetching so a failed refresh leaves nothing stale behind.
type CatalogIndex struct {
	remote DatasourceLister
	logger *slog.Logger

	mu       sync.Mutex
	snapshot *cache.Expiring[*Snapshot]
	version  atomic.Uint64
}

// NewCatalogIndex creates an index over remote. now may be nil.
func NewCatalogIndex(remote DatasourceLister, ttl time.Duration, now func() time.Time, logger *slog.Logger) *CatalogIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogIndex{
		remote:   remote,
		logger:   logger,
		snapshot: cache.New[*Snapshot](ttl, now),
	}
}

// ensureFresh returns the current snapshot, rebuilding it when it is
// missing, expired or empty. Concurrent callers wait for the one in-flight
// rebuild.
func (idx *CatalogIndex) ensureFresh(ctx context.Context) (*Snapshot, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if s, ok := idx.snapshot.Get(); ok && !s.empty() {
		return s, nil
	}

	idx.snapshot.Clear()
	datasources, err := idx.remote.ListDatasources(ctx)
	if err != nil {
		idx.logger.Error("Failed to refresh catalog", "error", err)
		return nil, err
	}

	s := buildSnapshot(datasources)
	idx.snapshot.Put(s)
	version := idx.version.Add(1)

	idx.logger.Info("Catalog refreshed",
		"schemas", len(s.schemas),
		"tables", len(s.remote),
		"version", version,
	)
	return s, nil
}

func (idx *CatalogIndex) ListSchemas(ctx context.Context) ([]string, error) {
	s, err := idx.ensureFresh(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.schemas), nil
}

func (idx *CatalogIndex) ListTables(ctx context.Context, schema string) ([]TableName, error) {
	s, err := idx.ensureFresh(ctx)
	if err != nil {
		return nil, err
	}
	tables, ok := s.tables[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchSchema, schema)
	}
	out := make([]TableName, len(tables))
	for i, t := range tables {
		out[i] = TableName{Schema: schema, Table: t}
	}
	return out, nil
}

func (idx *CatalogIndex) Lookup(ctx context.Context, schema, table string) (TableRef, error) {
	s, err := idx.ensureFresh(ctx)
	if err != nil {
		return TableRef{}, err
	}
	name := TableName{Schema: schema, Table: table}
	remote, ok := s.remote[name]
	if !ok {
		return TableRef{}, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
	}
	return TableRef{
		Schema:      schema,
		Table:       table,
		Datasource:  s.datasources[schema],
		RemoteTable: remote,
	}, nil
}

func (idx *CatalogIndex) Invalidate() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.snapshot.Clear()
}

func (idx *CatalogIndex) Version() uint64 {
	return idx.version.Load()
}

// fixedIndex is a catalog whose layout never depends on the remote.
type fixedIndex struct {
	schema string
	tables []string
}

func (f *fixedIndex) ListSchemas(context.Context) ([]string, error) {
	return []string{f.schema}, nil
}

func (f *fixedIndex) ListTables(_ context.Context, schema string) ([]TableName, error) {
	if schema != f.schema {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchSchema, schema)
	}
	out := make([]TableName, len(f.tables))
	for i, t := range f.tables {
		out[i] = TableName{Schema: schema, Table: t}
	}
	return out, nil
}

func (f *fixedIndex) Lookup(_ context.Context, schema, table string) (TableRef, error) {
	name := TableName{Schema: schema, Table: table}
	if schema != f.schema || !slices.Contains(f.tables, table) {
		return TableRef{}, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
	}
	return TableRef{Schema: schema, Table: table, RemoteTable: table}, nil
}

func (f *fixedIndex) Invalidate() {}

func (f *fixedIndex) Version() uint64 { return 1 }
