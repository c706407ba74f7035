package airport

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/opal-airport/flight"
)

// NewServer registers the Airport Flight service handlers on grpcServer.
// It does not start the server; the caller owns Serve and shutdown.
//
// Authentication interceptors are installed through ServerOptions:
//
//	opts := airport.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	if err := airport.NewServer(grpcServer, config); err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
func NewServer(grpcServer *grpc.Server, config ServerConfig) error {
	if config.Catalog == nil {
		return fmt.Errorf("%w: catalog is required", ErrInvalidConfig)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := serverLogger(config)

	flight.RegisterFlightServer(grpcServer, flight.NewServer(config.Catalog, allocator, logger, config.Address))

	logger.Info("Airport Flight server registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
		"address", config.Address,
	)
	return nil
}

func serverLogger(config ServerConfig) *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	return slog.Default()
}

// ServerOptions returns gRPC server options carrying the authentication
// interceptors and message size limits of config.
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if config.Auth != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(flight.UnaryServerInterceptor(config.Auth)),
			grpc.StreamInterceptor(flight.StreamServerInterceptor(config.Auth)),
		)
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}
	return opts
}
