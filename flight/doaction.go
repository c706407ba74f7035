package flight

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/opal-airport/catalog"
	"github.com/hugr-lab/opal-airport/internal/msgpack"
	"github.com/hugr-lab/opal-airport/internal/recovery"
	"github.com/hugr-lab/opal-airport/internal/serialize"
)

// Airport action names.
const (
	ActionListSchemas       = "list_schemas"
	ActionListTables        = "list_tables"
	ActionEndpoints         = "endpoints"
	ActionCreateTransaction = "create_transaction"
	ActionCatalogVersion    = "catalog_version"
)

// emptySHA256 marks catalog contents that are not sent inline.
const emptySHA256 = "0000000000000000000000000000000000000000000000000000000000000000"

// DoAction dispatches the Airport catalog actions. The catalog is read-only,
// so DDL and DML actions are reported as unimplemented.
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoAction called",
		"type", action.GetType(),
		"body_size", len(action.GetBody()),
		"session_id", SessionIDFromContext(ctx),
	)

	switch action.GetType() {
	case ActionListSchemas:
		return s.handleListSchemas(ctx, action, stream)
	case ActionListTables:
		return s.handleListTables(ctx, action, stream)
	case ActionEndpoints:
		return s.handleEndpoints(ctx, action, stream)
	case ActionCreateTransaction:
		return s.handleCreateTransaction(ctx, action, stream)
	case ActionCatalogVersion:
		return s.handleCatalogVersion(ctx, stream)
	default:
		return status.Errorf(codes.Unimplemented, "unknown action type: %s", action.GetType())
	}
}

// ListActions advertises the supported actions.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	actions := []*flight.ActionType{
		{Type: ActionListSchemas, Description: "List schemas with their serialized tables"},
		{Type: ActionListTables, Description: "List table names of one or all schemas"},
		{Type: ActionEndpoints, Description: "Get flight endpoints for a table scan"},
		{Type: ActionCreateTransaction, Description: "Start a transaction (always empty)"},
		{Type: ActionCatalogVersion, Description: "Get the current catalog version"},
	}
	for _, a := range actions {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) send(stream flight.FlightService_DoActionServer, action string, v any) error {
	body, err := msgpack.Encode(v)
	if err != nil {
		s.logger.Error("Failed to encode response", "action", action, "error", err)
		return status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s.sendBody(stream, action, body)
}

func (s *Server) sendBody(stream flight.FlightService_DoActionServer, action string, body []byte) error {
	if err := stream.Send(&flight.Result{Body: body}); err != nil {
		s.logger.Error("Failed to send result", "action", action, "error", err)
		return status.Errorf(codes.Internal, "failed to send result: %v", err)
	}
	return nil
}

// catalogVersion returns the catalog version, or a fixed version 1 for
// catalogs that do not track changes.
func (s *Server) catalogVersion(ctx context.Context) (uint64, bool, error) {
	vc, ok := s.catalog.(catalog.VersionedCatalog)
	if !ok {
		return 1, true, nil
	}
	type result struct {
		version uint64
		fixed   bool
	}
	r, err := recovery.RecoverToValue(s.logger, "Version", func() (result, error) {
		v, fixed, err := vc.Version(ctx)
		return result{v, fixed}, err
	})
	return r.version, r.fixed, err
}

// handleListSchemas returns the compressed catalog root the Airport
// extension reads on ATTACH. Every schema carries its tables inline as
// serialized FlightInfo messages.
func (s *Server) handleListSchemas(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params struct {
		CatalogName string `msgpack:"catalog_name"`
	}
	if len(action.GetBody()) > 0 {
		if err := msgpack.Decode(action.GetBody(), &params); err != nil {
			s.logger.Warn("Ignoring malformed list_schemas parameters", "error", err)
		}
	}

	schemas, err := recovery.RecoverToValue(s.logger, "Schemas", func() ([]catalog.Schema, error) {
		return s.catalog.Schemas(ctx)
	})
	if err != nil {
		s.logger.Error("Failed to get schemas", "error", err)
		return statusFromError(err, "failed to get schemas")
	}

	schemaObjects := make([]map[string]any, 0, len(schemas))
	for i, schema := range schemas {
		contents, err := s.serializeSchemaContents(ctx, schema)
		if err != nil {
			s.logger.Error("Failed to serialize schema contents", "schema", schema.Name(), "error", err)
			return statusFromError(err, "failed to serialize schema %s", schema.Name())
		}
		schemaObjects = append(schemaObjects, map[string]any{
			"name":        schema.Name(),
			"description": schema.Comment(),
			"tags":        map[string]string{},
			"contents": map[string]any{
				"sha256":     contents.SHA256(),
				"url":        nil,
				"serialized": string(contents.Body),
			},
			"is_default": i == 0,
		})
	}

	version, fixed, err := s.catalogVersion(ctx)
	if err != nil {
		return statusFromError(err, "failed to get catalog version")
	}

	root, err := serialize.Pack(map[string]any{
		"contents": map[string]any{
			"sha256":     emptySHA256,
			"url":        nil,
			"serialized": nil,
		},
		"schemas": schemaObjects,
		"version_info": map[string]any{
			"catalog_version": version,
			"is_fixed":        fixed,
		},
	})
	if err != nil {
		s.logger.Error("Failed to encode catalog root", "error", err)
		return status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	if err := s.sendBody(stream, ActionListSchemas, root.Body); err != nil {
		return err
	}

	s.logger.Info("Schemas listed",
		"catalog_name", params.CatalogName,
		"schemas", len(schemas),
		"version", version,
		"uncompressed_bytes", root.Uncompressed,
		"compressed_bytes", root.CompressedLength,
	)
	return nil
}

// serializeSchemaContents packs one FlightInfo per table of schema.
func (s *Server) serializeSchemaContents(ctx context.Context, schema catalog.Schema) (*serialize.Envelope, error) {
	tables, err := recovery.RecoverToValue(s.logger, "Tables", func() ([]catalog.Table, error) {
		return schema.Tables(ctx)
	})
	if err != nil {
		return nil, err
	}

	infos := make([][]byte, 0, len(tables))
	for _, table := range tables {
		info, err := s.tableFlightInfo(schema.Name(), table)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return serialize.Pack(infos)
}

func (s *Server) tableFlightInfo(schemaName string, table catalog.Table) ([]byte, error) {
	arrowSchema := table.ArrowSchema()
	if arrowSchema == nil {
		return nil, fmt.Errorf("table %s.%s has nil Arrow schema", schemaName, table.Name())
	}

	appMetadata, err := msgpack.Encode(map[string]any{
		"type":         "table",
		"schema":       schemaName,
		"catalog":      "",
		"name":         table.Name(),
		"comment":      table.Comment(),
		"input_schema": nil,
		"action_name":  nil,
		"description":  nil,
		"extra_data":   nil,
	})
	if err != nil {
		return nil, err
	}

	ticket, err := EncodeTicket(schemaName, table.Name(), nil, nil)
	if err != nil {
		return nil, err
	}

	info := &flight.FlightInfo{
		Schema: flight.SerializeSchema(arrowSchema, s.allocator),
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{schemaName, table.Name()},
		},
		Endpoint:     []*flight.FlightEndpoint{{Ticket: &flight.Ticket{Ticket: ticket}}},
		TotalRecords: -1,
		TotalBytes:   -1,
		AppMetadata:  appMetadata,
	}
	data, err := proto.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal FlightInfo: %w", err)
	}
	return data, nil
}

// handleListTables returns {schema, tables} for one schema, or
// {tables: {schema: [...]}} when no schema is given.
func (s *Server) handleListTables(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params struct {
		SchemaName string `msgpack:"schema_name"`
	}
	if len(action.GetBody()) > 0 {
		if err := msgpack.Decode(action.GetBody(), &params); err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid parameters: %v", err)
		}
	}

	tableNames := func(schema catalog.Schema) ([]string, error) {
		tables, err := recovery.RecoverToValue(s.logger, "Tables", func() ([]catalog.Table, error) {
			return schema.Tables(ctx)
		})
		if err != nil {
			return nil, err
		}
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Name()
		}
		return names, nil
	}

	if params.SchemaName != "" {
		schema, err := s.catalog.Schema(ctx, params.SchemaName)
		if err != nil {
			return statusFromError(err, "failed to get schema")
		}
		if schema == nil {
			return status.Errorf(codes.NotFound, "schema not found: %s", params.SchemaName)
		}
		names, err := tableNames(schema)
		if err != nil {
			s.logger.Error("Failed to get tables", "schema", params.SchemaName, "error", err)
			return statusFromError(err, "failed to get tables")
		}
		return s.send(stream, ActionListTables, map[string]any{
			"schema": params.SchemaName,
			"tables": names,
		})
	}

	schemas, err := s.catalog.Schemas(ctx)
	if err != nil {
		return statusFromError(err, "failed to get schemas")
	}
	all := make(map[string][]string, len(schemas))
	for _, schema := range schemas {
		names, err := tableNames(schema)
		if err != nil {
			s.logger.Error("Failed to get tables", "schema", schema.Name(), "error", err)
			return statusFromError(err, "failed to get tables of %s", schema.Name())
		}
		all[schema.Name()] = names
	}
	return s.send(stream, ActionListTables, map[string]any{"tables": all})
}

// handleEndpoints answers the scan planning request DuckDB sends before
// DoGet. The projected column ids and filters travel in the ticket.
func (s *Server) handleEndpoints(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request struct {
		Descriptor string `msgpack:"descriptor"`
		Parameters struct {
			JSONFilters string   `msgpack:"json_filters"`
			ColumnIDs   []uint64 `msgpack:"column_ids"`
			AtUnit      string   `msgpack:"at_unit"`
			AtValue     string   `msgpack:"at_value"`
		} `msgpack:"parameters"`
	}
	if err := msgpack.Decode(action.GetBody(), &request); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if request.Parameters.AtUnit != "" {
		return status.Error(codes.Unimplemented, "point-in-time scans are not supported")
	}

	desc := &flight.FlightDescriptor{}
	if err := proto.Unmarshal([]byte(request.Descriptor), desc); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid descriptor: %v", err)
	}
	if desc.GetType() != flight.DescriptorPATH || len(desc.GetPath()) != 2 {
		return status.Error(codes.InvalidArgument, "descriptor must be PATH type with 2 elements [schema, table]")
	}
	schemaName, tableName := desc.GetPath()[0], desc.GetPath()[1]

	table, err := s.lookupTable(ctx, schemaName, tableName)
	if err != nil {
		return err
	}
	columns := projectedColumns(table, request.Parameters.ColumnIDs)

	var filters []byte
	if request.Parameters.JSONFilters != "" {
		filters = []byte(request.Parameters.JSONFilters)
	}
	ticket, err := EncodeTicket(schemaName, tableName, columns, filters)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	endpoint, err := proto.Marshal(s.endpoint(ticket))
	if err != nil {
		return status.Errorf(codes.Internal, "failed to marshal endpoint: %v", err)
	}

	s.logger.Debug("Endpoints planned",
		"schema", schemaName,
		"table", tableName,
		"columns", columns,
		"has_filters", filters != nil,
	)
	return s.send(stream, ActionEndpoints, []string{string(endpoint)})
}

// projectedColumns maps DuckDB column ids to names. Ids outside the
// schema, such as the row id, are skipped; nil means all columns.
func projectedColumns(table catalog.Table, ids []uint64) []string {
	if len(ids) == 0 {
		return nil
	}
	fields := table.ArrowSchema().Fields()
	columns := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < uint64(len(fields)) {
			columns = append(columns, fields[id].Name)
		}
	}
	if len(columns) == 0 {
		return nil
	}
	return columns
}

// handleCreateTransaction returns an empty identifier; the catalog is read-only.
func (s *Server) handleCreateTransaction(_ context.Context, _ *flight.Action, stream flight.FlightService_DoActionServer) error {
	return s.send(stream, ActionCreateTransaction, map[string]any{"identifier": nil})
}

func (s *Server) handleCatalogVersion(ctx context.Context, stream flight.FlightService_DoActionServer) error {
	version, fixed, err := s.catalogVersion(ctx)
	if err != nil {
		s.logger.Error("Failed to get catalog version", "error", err)
		return statusFromError(err, "failed to get catalog version")
	}
	return s.send(stream, ActionCatalogVersion, map[string]any{
		"catalog_version": version,
		"is_fixed":        fixed,
	})
}
