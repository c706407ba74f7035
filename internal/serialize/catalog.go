// Package serialize encodes catalog listings for the Flight handlers:
// the Flight SQL GetTables record returned by ListFlights and the
// zstd-compressed msgpack envelopes used by the Airport actions.
package serialize

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/opal-airport/catalog"
)

// TablesSchema is the Flight SQL GetTables result schema.
var TablesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "catalog_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "db_schema_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "table_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "table_type", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// SerializeCatalog lists every table of cat as one GetTables record in
// Arrow IPC stream format.
func SerializeCatalog(ctx context.Context, cat catalog.Catalog, allocator memory.Allocator) ([]byte, error) {
	schemas, err := cat.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}

	builder := array.NewRecordBuilder(allocator, TablesSchema)
	defer builder.Release()

	catalogNames := builder.Field(0).(*array.StringBuilder)
	schemaNames := builder.Field(1).(*array.StringBuilder)
	tableNames := builder.Field(2).(*array.StringBuilder)
	tableTypes := builder.Field(3).(*array.StringBuilder)

	for _, schema := range schemas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tables, err := schema.Tables(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tables for schema %s: %w", schema.Name(), err)
		}
		for _, table := range tables {
			catalogNames.AppendNull()
			schemaNames.Append(schema.Name())
			tableNames.Append(table.Name())
			tableTypes.Append("TABLE")
		}
	}

	record := builder.NewRecordBatch()
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(TablesSchema), ipc.WithAllocator(allocator))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write IPC record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close IPC writer: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressCatalog compresses serialized catalog data using ZStandard.
func CompressCatalog(data []byte) ([]byte, error) {
	compressor, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	defer compressor.Close()

	return compressor.Compress(data)
}
