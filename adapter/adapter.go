// Package adapter maps the Opal REST API onto a relational catalog:
// schemas, tables, typed columns and rows.
//
// One Adapter serves one presentation. "values" exposes datasources as
// schemas and the entity values of each table as rows, "variables" exposes
// the variable dictionary of each table, and "administration" exposes the
// classification and server configuration listings under the "system"
// schema.
package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL is the lifetime of the catalog and classification caches.
	DefaultCacheTTL = 300 * time.Second
	// DefaultBatchSize is the page size of full-table reads.
	DefaultBatchSize = 10000
)

// Options configures an Adapter.
type Options struct {
	// Presentation selects the strategies; empty means "values".
	Presentation string
	// CacheTTL of the catalog and classifications. Zero means
	// DefaultCacheTTL, a negative value refreshes on every call.
	CacheTTL time.Duration
	// BatchSize of paged reads. Zero means DefaultBatchSize.
	BatchSize int
	// Languages overrides the display languages from the server configuration.
	Languages []string
	Logger    *slog.Logger
	// Now is the cache clock; nil means time.Now.
	Now func() time.Time
}

// Page restricts a read to a window of rows. A zero Limit reads everything
// past Offset.
type Page struct {
	Offset int
	Limit  int
}

// Adapter answers catalog and row queries for one presentation.
type Adapter struct {
	p         *Presentation
	batchSize int
	logger    *slog.Logger

	mu      sync.RWMutex
	schemas map[TableRef]*TableSchema
	group   singleflight.Group
}

// New creates an Adapter reading from remote.
func New(remote Remote, opts Options) (*Adapter, error) {
	if opts.Presentation == "" {
		opts.Presentation = PresentationValues
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	logger := opts.Logger.With("presentation", opts.Presentation)
	p, err := newPresentation(opts.Presentation, remote, opts.Languages, opts.CacheTTL, opts.Now, logger)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		p:         p,
		batchSize: opts.BatchSize,
		logger:    logger,
		schemas:   make(map[TableRef]*TableSchema),
	}, nil
}

// Presentation returns the active presentation.
func (a *Adapter) Presentation() *Presentation { return a.p }

// BatchSize returns the page size of full-table reads.
func (a *Adapter) BatchSize() int { return a.batchSize }

func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	return a.p.Index.ListSchemas(ctx)
}

func (a *Adapter) ListTables(ctx context.Context, schema string) ([]TableName, error) {
	return a.p.Index.ListTables(ctx, schema)
}

// TableSchema returns the columns of a table. Schemas are built once per
// remote table and kept until Invalidate.
func (a *Adapter) TableSchema(ctx context.Context, schema, table string) (*TableSchema, error) {
	ref, err := a.p.Index.Lookup(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	return a.tableSchema(ctx, ref)
}

func (a *Adapter) tableSchema(ctx context.Context, ref TableRef) (*TableSchema, error) {
	a.mu.RLock()
	ts, ok := a.schemas[ref]
	a.mu.RUnlock()
	if ok {
		return ts, nil
	}

	// Shared builds outlive the caller that started them; each caller stops
	// waiting when its own context ends.
	buildCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(ref.Schema+"\x00"+ref.Table+"\x00"+ref.RemoteName(), func() (any, error) {
		a.mu.RLock()
		ts, ok := a.schemas[ref]
		a.mu.RUnlock()
		if ok {
			return ts, nil
		}

		ts, err := a.p.Builder.BuildSchema(buildCtx, ref)
		if err != nil {
			a.logger.Error("Failed to build table schema", "table", ref.RemoteName(), "error", err)
			return nil, err
		}
		a.mu.Lock()
		a.schemas[ref] = ts
		a.mu.Unlock()

		a.logger.Debug("Table schema built", "table", ref.Name().String(), "columns", len(ts.Columns))
		return ts, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TableSchema), nil
	}
}

// Rows reads a table. columns nil means every column of the schema; a
// column that has no mapping yields nil values. With a nil page the whole
// table is read in batches of BatchSize, as is the tail of a page with an
// offset and no limit.
func (a *Adapter) Rows(ctx context.Context, schema, table string, columns []string, page *Page) ([][]any, error) {
	ts, err := a.TableSchema(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		columns = ts.Names()
	}
	sources := a.p.Router.Sources(ts, columns)

	if page != nil && (page.Limit > 0 || !a.p.Materializer.Batched()) {
		return a.p.Materializer.Fetch(ctx, ts, sources, page.Offset, page.Limit)
	}

	cur := a.newCursor(ctx, ts, columns, sources)
	if page != nil {
		cur.offset = page.Offset
	}
	var rows [][]any
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	return rows, cur.Err()
}

// Cursor streams a table batch by batch.
func (a *Adapter) Cursor(ctx context.Context, schema, table string, columns []string) (*Cursor, error) {
	ts, err := a.TableSchema(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		columns = ts.Names()
	}
	return a.newCursor(ctx, ts, columns, a.p.Router.Sources(ts, columns)), nil
}

// Invalidate drops cached state. An empty schema drops everything,
// including the catalog snapshot and classifications.
func (a *Adapter) Invalidate(schema string) {
	a.mu.Lock()
	for ref := range a.schemas {
		if schema == "" || ref.Schema == schema {
			delete(a.schemas, ref)
		}
	}
	a.mu.Unlock()

	if schema == "" {
		a.p.invalidate()
	}
}

// Version changes whenever the catalog snapshot is republished.
func (a *Adapter) Version() uint64 {
	return a.p.Index.Version()
}
