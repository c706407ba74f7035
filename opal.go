package airport

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/opal-airport/adapter"
	"github.com/hugr-lab/opal-airport/opal"
)

// NewOpalCatalog builds the relational catalog of an Opal server in the
// configured presentation. alloc may be nil.
//
//	cat, err := airport.NewOpalCatalog(airport.OpalConfig{
//	    URL:      "https://opal.example.org",
//	    Username: "administrator",
//	    Password: os.Getenv("OPAL_PASSWORD"),
//	}, nil)
func NewOpalCatalog(config OpalConfig, alloc memory.Allocator) (*adapter.Catalog, error) {
	client, err := opal.NewClient(config.URL, config.Username, config.Password,
		opal.WithHTTPClient(config.HTTPClient),
		opal.WithLogger(config.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	a, err := adapter.New(client, adapter.Options{
		Presentation: config.Presentation,
		CacheTTL:     config.CacheTTL,
		BatchSize:    config.BatchSize,
		Languages:    config.Languages,
		Logger:       config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return adapter.NewCatalog(a, alloc), nil
}
