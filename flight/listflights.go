package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"

	"github.com/hugr-lab/opal-airport/internal/recovery"
	"github.com/hugr-lab/opal-airport/internal/serialize"
)

// ListFlights returns the whole catalog as a single FlightInfo whose ticket
// holds a zstd-compressed Flight SQL GetTables record. Criteria is ignored.
func (s *Server) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("ListFlights called")

	catalogData, err := recovery.RecoverToValue(s.logger, "SerializeCatalog", func() ([]byte, error) {
		return serialize.SerializeCatalog(ctx, s.catalog, s.allocator)
	})
	if err != nil {
		s.logger.Error("Failed to serialize catalog", "error", err)
		return statusFromError(err, "failed to serialize catalog")
	}

	compressed, err := serialize.CompressCatalog(catalogData)
	if err != nil {
		s.logger.Error("Failed to compress catalog", "error", err)
		return statusFromError(err, "failed to compress catalog")
	}

	info := &flight.FlightInfo{
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorCMD,
			Cmd:  []byte("ListFlights"),
		},
		Endpoint: []*flight.FlightEndpoint{
			{Ticket: &flight.Ticket{Ticket: compressed}},
		},
		TotalRecords: -1,
		TotalBytes:   int64(len(compressed)),
	}
	if err := stream.Send(info); err != nil {
		s.logger.Error("Failed to send FlightInfo", "error", err)
		return statusFromError(err, "failed to send flight info")
	}

	s.logger.Debug("ListFlights completed",
		"uncompressed_bytes", len(catalogData),
		"compressed_bytes", len(compressed),
	)
	return nil
}
