package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/opal-airport/catalog"
	"github.com/hugr-lab/opal-airport/opal"
)

// tableBuildLimit bounds concurrent schema builds when a schema lists its tables.
const tableBuildLimit = 8

// Catalog serves an Adapter through the catalog interfaces.
type Catalog struct {
	adapter *Adapter
	alloc   memory.Allocator
}

var _ catalog.VersionedCatalog = (*Catalog)(nil)

// NewCatalog wraps a. A nil allocator means memory.DefaultAllocator.
func NewCatalog(a *Adapter, alloc memory.Allocator) *Catalog {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &Catalog{adapter: a, alloc: alloc}
}

// Adapter returns the wrapped adapter.
func (c *Catalog) Adapter() *Adapter { return c.adapter }

func (c *Catalog) Schemas(ctx context.Context) ([]catalog.Schema, error) {
	names, err := c.adapter.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(names, func(name string, _ int) catalog.Schema {
		return &arrowSchema{cat: c, name: name}
	}), nil
}

func (c *Catalog) Schema(ctx context.Context, name string) (catalog.Schema, error) {
	names, err := c.adapter.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, name) {
		return nil, nil
	}
	return &arrowSchema{cat: c, name: name}, nil
}

// Version refreshes the catalog if needed and returns the snapshot version.
// The administration catalog never changes.
func (c *Catalog) Version(ctx context.Context) (uint64, bool, error) {
	if _, err := c.adapter.ListSchemas(ctx); err != nil {
		return 0, false, err
	}
	return c.adapter.Version(), c.adapter.Presentation().Name == PresentationAdministration, nil
}

type arrowSchema struct {
	cat  *Catalog
	name string
}

func (s *arrowSchema) Name() string { return s.name }

func (s *arrowSchema) Comment() string {
	return "Opal " + s.cat.adapter.Presentation().Name
}

// Tables builds the schema of every table. A table the server refuses to
// describe is left out of the listing; Table still reports its error.
func (s *arrowSchema) Tables(ctx context.Context) ([]catalog.Table, error) {
	names, err := s.cat.adapter.ListTables(ctx, s.name)
	if err != nil {
		if IsNotFound(err) {
			return []catalog.Table{}, nil
		}
		return nil, err
	}

	tables := make([]catalog.Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tableBuildLimit)
	for i, name := range names {
		g.Go(func() error {
			ts, err := s.cat.adapter.TableSchema(gctx, name.Schema, name.Table)
			var se *opal.StatusError
			if errors.As(err, &se) {
				s.cat.adapter.logger.Warn("Skipping table", "table", name.String(), "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("table %s: %w", name, err)
			}
			tables[i] = s.cat.newTable(ts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Filter(tables, func(t catalog.Table, _ int) bool { return t != nil }), nil
}

func (s *arrowSchema) Table(ctx context.Context, name string) (catalog.Table, error) {
	ts, err := s.cat.adapter.TableSchema(ctx, s.name, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.cat.newTable(ts), nil
}

type arrowTable struct {
	cat    *Catalog
	ts     *TableSchema
	schema *arrow.Schema
}

func (c *Catalog) newTable(ts *TableSchema) *arrowTable {
	return &arrowTable{cat: c, ts: ts, schema: ArrowSchema(ts)}
}

func (t *arrowTable) Name() string               { return t.ts.Ref.Table }
func (t *arrowTable) Comment() string            { return t.ts.Ref.RemoteName() }
func (t *arrowTable) ArrowSchema() *arrow.Schema { return t.schema }

// Scan always returns every column of the schema; columns outside
// opts.Columns are not read from the remote and come back as nulls.
func (t *arrowTable) Scan(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
	columns := t.ts.Names()
	sources := t.cat.adapter.p.Router.Sources(t.ts, columns)

	var limit int64
	if opts != nil {
		limit = opts.Limit
		if len(opts.Columns) > 0 {
			for i, name := range columns {
				if !slices.Contains(opts.Columns, name) {
					sources[i] = nil
				}
			}
		}
	}

	cur := t.cat.adapter.newCursor(ctx, t.ts, columns, sources)
	return newRecordReader(t.cat.alloc, t.schema, cur, limit), nil
}

// ArrowSchema converts a table schema. Every column is nullable.
func ArrowSchema(ts *TableSchema) *arrow.Schema {
	fields := make([]arrow.Field, len(ts.Columns))
	for i, c := range ts.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: true}
	}
	md := arrow.NewMetadata([]string{"opal_table"}, []string{ts.Ref.RemoteName()})
	return arrow.NewSchema(fields, &md)
}

func arrowType(t ColumnType) arrow.DataType {
	switch t {
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case TypeInteger:
		return arrow.PrimitiveTypes.Int32
	default:
		return arrow.BinaryTypes.String
	}
}

// recordReader turns cursor batches into record batches.
type recordReader struct {
	refs    atomic.Int64
	alloc   memory.Allocator
	schema  *arrow.Schema
	cursor  *Cursor
	limit   int64
	emitted int64
	current arrow.RecordBatch
	err     error
}

func newRecordReader(alloc memory.Allocator, schema *arrow.Schema, cur *Cursor, limit int64) *recordReader {
	r := &recordReader{alloc: alloc, schema: schema, cursor: cur, limit: limit}
	r.refs.Store(1)
	return r
}

func (r *recordReader) Schema() *arrow.Schema          { return r.schema }
func (r *recordReader) Record() arrow.RecordBatch      { return r.current }
func (r *recordReader) RecordBatch() arrow.RecordBatch { return r.current }
func (r *recordReader) Err() error                     { return r.err }
func (r *recordReader) Retain()                        { r.refs.Add(1) }

func (r *recordReader) Release() {
	if r.refs.Add(-1) == 0 && r.current != nil {
		r.current.Release()
		r.current = nil
	}
}

func (r *recordReader) Next() bool {
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	if r.err != nil || (r.limit > 0 && r.emitted >= r.limit) {
		return false
	}

	rows, err := r.cursor.NextBatch()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}
	if r.limit > 0 && r.emitted+int64(len(rows)) > r.limit {
		rows = rows[:r.limit-r.emitted]
	}

	rec, err := buildRecord(r.alloc, r.schema, rows)
	if err != nil {
		r.err = err
		return false
	}
	r.emitted += int64(len(rows))
	r.current = rec
	return true
}

func buildRecord(alloc memory.Allocator, schema *arrow.Schema, rows [][]any) (arrow.RecordBatch, error) {
	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for _, row := range rows {
		for i := range schema.NumFields() {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if err := appendValue(builder.Field(i), v); err != nil {
				return nil, fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
			}
		}
	}
	return builder.NewRecordBatch(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.StringBuilder:
		switch v := v.(type) {
		case string:
			b.Append(v)
		default:
			b.Append(fmt.Sprint(v))
		}
	case *array.BooleanBuilder:
		switch v := v.(type) {
		case bool:
			b.Append(v)
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			b.Append(parsed)
		default:
			return fmt.Errorf("unsupported boolean value %T", v)
		}
	case *array.Int32Builder:
		switch v := v.(type) {
		case int:
			b.Append(int32(v))
		case int32:
			b.Append(v)
		case int64:
			b.Append(int32(v))
		default:
			return fmt.Errorf("unsupported integer value %T", v)
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}
