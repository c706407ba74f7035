package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Table is a queryable table with a fixed schema.
type Table interface {
	// Name returns the table name. MUST be non-empty.
	Name() string

	// Comment returns optional table documentation.
	Comment() string

	// ArrowSchema returns the schema describing the table columns.
	ArrowSchema() *arrow.Schema

	// Scan returns a reader over the table rows.
	// The reader schema MUST match ArrowSchema(); columns not listed in
	// opts.Columns may be returned as nulls.
	// Caller MUST call reader.Release().
	Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)
}
