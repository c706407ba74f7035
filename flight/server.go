// Package flight implements the Arrow Flight handlers the DuckDB Airport
// extension talks to, serving any catalog.Catalog.
package flight

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/opal-airport/catalog"
)

// Server implements the Flight service handlers.
type Server struct {
	flight.BaseFlightServer

	catalog   catalog.Catalog
	allocator memory.Allocator
	logger    *slog.Logger
	address   string // public address advertised in FlightEndpoint locations
}

// NewServer creates a Flight server over cat. address may be empty, in
// which case endpoints carry no location and clients reuse their connection.
func NewServer(cat catalog.Catalog, allocator memory.Allocator, logger *slog.Logger, address string) *Server {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog:   cat,
		allocator: allocator,
		logger:    logger,
		address:   address,
	}
}

// RegisterFlightServer registers the Flight service on grpcServer.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
