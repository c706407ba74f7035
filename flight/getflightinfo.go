package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetFlightInfo returns the schema and a scan ticket for a PATH descriptor
// of the form [schema_name, table_name].
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if desc.GetType() != flight.DescriptorPATH {
		return nil, status.Error(codes.InvalidArgument, "descriptor must be PATH type")
	}
	path := desc.GetPath()
	if len(path) != 2 {
		return nil, status.Error(codes.InvalidArgument, "path must contain exactly 2 elements: [schema_name, table_name]")
	}
	schemaName, tableName := path[0], path[1]

	s.logger.Debug("GetFlightInfo called", "schema", schemaName, "table", tableName)

	table, err := s.lookupTable(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	arrowSchema := table.ArrowSchema()

	ticket, err := EncodeTicket(schemaName, tableName, nil, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(arrowSchema, s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{s.endpoint(ticket)},
		TotalRecords:     -1,
		TotalBytes:       -1,
	}, nil
}

// endpoint wraps a ticket, adding the server location when one is configured.
func (s *Server) endpoint(ticket []byte) *flight.FlightEndpoint {
	ep := &flight.FlightEndpoint{Ticket: &flight.Ticket{Ticket: ticket}}
	if s.address != "" {
		ep.Location = []*flight.Location{{Uri: "grpc://" + s.address}}
	}
	return ep
}
