package flight

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/opal-airport/catalog"
	"github.com/hugr-lab/opal-airport/internal/recovery"
)

// lookupTable resolves schema.table, returning gRPC status errors.
func (s *Server) lookupTable(ctx context.Context, schemaName, tableName string) (catalog.Table, error) {
	schema, err := recovery.RecoverToValue(s.logger, "Schema", func() (catalog.Schema, error) {
		return s.catalog.Schema(ctx, schemaName)
	})
	if err != nil {
		s.logger.Error("Failed to get schema from catalog", "schema", schemaName, "error", err)
		return nil, statusFromError(err, "failed to get schema")
	}
	if schema == nil {
		return nil, status.Errorf(codes.NotFound, "schema not found: %s", schemaName)
	}

	table, err := recovery.RecoverToValue(s.logger, "Table", func() (catalog.Table, error) {
		return schema.Table(ctx, tableName)
	})
	if err != nil {
		s.logger.Error("Failed to get table from schema",
			"schema", schemaName,
			"table", tableName,
			"error", err,
		)
		return nil, statusFromError(err, "failed to get table")
	}
	if table == nil {
		return nil, status.Errorf(codes.NotFound, "table not found: %s.%s", schemaName, tableName)
	}
	if table.ArrowSchema() == nil {
		return nil, status.Errorf(codes.Internal, "table %s.%s has nil Arrow schema", schemaName, tableName)
	}
	return table, nil
}
