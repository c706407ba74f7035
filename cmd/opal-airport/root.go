package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/cobra"

	airport "github.com/hugr-lab/opal-airport"
	"github.com/hugr-lab/opal-airport/adapter"
	"github.com/hugr-lab/opal-airport/internal/config"
	"github.com/hugr-lab/opal-airport/opal"
)

var version = "dev"

// options holds the persistent flags. Flags explicitly set on the command
// line override the config file.
type options struct {
	configFile   string
	logLevel     string
	url          string
	username     string
	password     string
	presentation string
	cacheTTL     time.Duration
	batchSize    int
	languages    []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "opal-airport",
		Short: "Opal biobank catalog over Arrow Flight",
		Long: `opal-airport exposes the datasources and tables of an Opal server as a
relational catalog that DuckDB attaches with the Airport extension.

Schemas, tables and rows can also be listed directly from the terminal.`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&opts.url, "opal-url", "", "Opal server URL")
	flags.StringVar(&opts.username, "username", "", "Opal username")
	flags.StringVar(&opts.password, "password", "", "Opal password (prefer ${ENV:NAME} in the config file)")
	flags.StringVar(&opts.presentation, "presentation", config.DefaultPresentation, "values, variables or administration")
	flags.DurationVar(&opts.cacheTTL, "cache-ttl", config.DefaultCacheTTL, "lifetime of cached catalog listings")
	flags.IntVar(&opts.batchSize, "batch-size", config.DefaultBatchSize, "rows per Opal request on full reads")
	flags.StringSliceVar(&opts.languages, "languages", nil, "display languages overriding the Opal configuration")

	root.AddCommand(
		newServeCmd(opts),
		newSchemasCmd(opts),
		newTablesCmd(opts),
		newDescribeCmd(opts),
		newQueryCmd(opts),
	)
	return root
}

// load reads the config file, if any, and applies the flags set on cmd.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("opal-url") {
		cfg.Opal.URL = o.url
	}
	if flags.Changed("username") {
		cfg.Opal.Username = o.username
	}
	if flags.Changed("password") {
		cfg.Opal.Password = o.password
	}
	if flags.Changed("presentation") {
		cfg.Opal.Presentation = o.presentation
	}
	if flags.Changed("cache-ttl") {
		cfg.Opal.CacheTTL = config.Duration(o.cacheTTL)
	}
	if flags.Changed("batch-size") {
		cfg.Opal.BatchSize = o.batchSize
	}
	if flags.Changed("languages") {
		cfg.Opal.Languages = o.languages
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func httpClient(cfg *config.Config) *http.Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = time.Duration(cfg.Opal.Timeout)
	return hc
}

func opalConfig(cfg *config.Config, logger *slog.Logger) airport.OpalConfig {
	return airport.OpalConfig{
		URL:          cfg.Opal.URL,
		Username:     cfg.Opal.Username,
		Password:     cfg.Opal.Password,
		Presentation: cfg.Opal.Presentation,
		CacheTTL:     time.Duration(cfg.Opal.CacheTTL),
		BatchSize:    cfg.Opal.BatchSize,
		Languages:    cfg.Opal.Languages,
		HTTPClient:   httpClient(cfg),
		Logger:       logger,
	}
}

// newAdapter builds the catalog core used by the browsing commands.
func (o *options) newAdapter(cmd *cobra.Command) (*adapter.Adapter, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	client, err := opal.NewClient(cfg.Opal.URL, cfg.Opal.Username, cfg.Opal.Password,
		opal.WithHTTPClient(httpClient(cfg)),
		opal.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return adapter.New(client, adapter.Options{
		Presentation: cfg.Opal.Presentation,
		CacheTTL:     time.Duration(cfg.Opal.CacheTTL),
		BatchSize:    cfg.Opal.BatchSize,
		Languages:    cfg.Opal.Languages,
		Logger:       logger,
	})
}
