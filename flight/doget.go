package flight

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/opal-airport/internal/recovery"
)

// DoGet streams the record batches of a table scan.
//
// The reader schema must equal the table schema: DuckDB expects the full
// schema and projects client-side, unrequested columns arrive as nulls.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	ticketData, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	logger := s.logger.With("schema", ticketData.Schema, "table", ticketData.Table)
	logger.Debug("DoGet called", "columns", ticketData.Columns, "trace_id", TraceIDFromContext(ctx))

	table, err := s.lookupTable(ctx, ticketData.Schema, ticketData.Table)
	if err != nil {
		return err
	}
	fullSchema := table.ArrowSchema()

	reader, err := recovery.RecoverToValue(s.logger, "Scan", func() (array.RecordReader, error) {
		return table.Scan(ctx, ticketData.ToScanOptions())
	})
	if err != nil {
		logger.Error("Table scan failed", "error", err)
		return statusFromError(err, "table scan failed")
	}
	defer reader.Release()

	if !fullSchema.Equal(reader.Schema()) {
		logger.Error("RecordReader schema does not match table schema",
			"table_schema_fields", fullSchema.NumFields(),
			"reader_schema_fields", reader.Schema().NumFields(),
		)
		return status.Errorf(codes.Internal,
			"schema mismatch: table has %d fields, reader has %d fields",
			fullSchema.NumFields(), reader.Schema().NumFields())
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(fullSchema))
	defer writer.Close()

	batches, rows := 0, int64(0)
	err = recovery.RecoverToError(s.logger, "Stream", func() error {
		for reader.Next() {
			select {
			case <-ctx.Done():
				logger.Debug("DoGet cancelled by client", "batches_sent", batches, "rows_sent", rows)
				return status.Error(codes.Canceled, "request cancelled")
			default:
			}

			record := reader.RecordBatch()
			if err := writer.Write(record); err != nil {
				return status.Errorf(codes.Internal, "failed to write batch %d: %v", batches+1, err)
			}
			batches++
			rows += record.NumRows()
		}
		return nil
	})
	if err != nil {
		logger.Error("Streaming failed", "batches_sent", batches, "error", err)
		return err
	}
	if err := reader.Err(); err != nil {
		logger.Error("RecordReader error during iteration", "batches_sent", batches, "error", err)
		return statusFromError(err, "scan error after batch %d", batches)
	}

	logger.Debug("DoGet completed", "batches_sent", batches, "total_rows", rows)
	return nil
}
