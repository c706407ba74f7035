package airport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/opal-airport/auth"
	"github.com/hugr-lab/opal-airport/catalog"
)

// ServerConfig contains configuration for the Airport Flight server.
type ServerConfig struct {
	// Catalog served to DuckDB. Required.
	Catalog catalog.Catalog

	// Auth validates bearer tokens. If nil, all requests are allowed.
	Auth auth.Authenticator

	// Allocator for Arrow memory. Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging. Uses slog.Default() if nil.
	Logger *slog.Logger

	// LogLevel builds a text logger on stderr at that level. Ignored when
	// Logger is set.
	LogLevel *slog.Level

	// MaxMessageSize sets the gRPC message size limit in bytes.
	// If 0, uses the gRPC default (4MB).
	MaxMessageSize int

	// Address is the public address advertised in FlightEndpoint locations
	// (e.g. "localhost:50051"). Optional.
	Address string
}

// OpalConfig describes the Opal server a catalog is built over.
type OpalConfig struct {
	// URL of the Opal server, e.g. "https://opal.example.org". Required.
	URL      string
	Username string
	Password string

	// Presentation is "values" (default), "variables" or "administration".
	Presentation string

	// CacheTTL of the datasource and classification listings.
	// Zero means 300s, a negative value refreshes on every call.
	CacheTTL time.Duration

	// BatchSize of paged value reads. Zero means 10000.
	BatchSize int

	// Languages overrides the display languages of the Opal server.
	Languages []string

	// HTTPClient replaces the default pooled client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Standard errors returned by the airport package.
var (
	// ErrUnauthorized indicates authentication failed.
	// Return this from Authenticator.Authenticate() for invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidConfig indicates ServerConfig or OpalConfig validation failed.
	ErrInvalidConfig = errors.New("invalid server config")
)
