// Package config loads the opal-airport YAML configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1

	DefaultListen       = ":50051"
	DefaultPresentation = "values"
	DefaultCacheTTL     = 300 * time.Second
	DefaultBatchSize    = 10000
	DefaultLogLevel     = "info"
)

var presentations = []string{"values", "variables", "administration"}

// Config is the top-level configuration.
type Config struct {
	Version int          `yaml:"version"`
	Server  ServerConfig `yaml:"server"`
	Opal    OpalConfig   `yaml:"opal"`
	Logging LogConfig    `yaml:"logging,omitempty"`
}

// ServerConfig defines the Flight listener.
type ServerConfig struct {
	Listen         string `yaml:"listen,omitempty"`
	Address        string `yaml:"address,omitempty"` // advertised in endpoint locations
	MaxMessageSize int    `yaml:"max_message_size,omitempty"`
	// Tokens maps accepted bearer tokens to identities. Empty disables auth.
	Tokens map[string]string `yaml:"tokens,omitempty"`
}

// OpalConfig defines the Opal server connection.
type OpalConfig struct {
	URL          string   `yaml:"url"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Presentation string   `yaml:"presentation,omitempty"` // values, variables or administration
	CacheTTL     Duration `yaml:"cache_ttl,omitempty"`
	BatchSize    int      `yaml:"batch_size,omitempty"`
	Languages    []string `yaml:"languages,omitempty"`
	Timeout      Duration `yaml:"timeout,omitempty"` // per HTTP request, 0 means none
}

// Duration is a time.Duration read from YAML as either a plain integer
// number of seconds or a Go duration string such as "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a number of seconds or a string like 300s", value.Line)
	}
	if value.Tag == "!!int" {
		var seconds int64
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: use a number of seconds or a string like 300s", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d Duration) String() string { return time.Duration(d).String() }

// LogConfig defines logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, resolves and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Opal.Presentation == "" {
		c.Opal.Presentation = DefaultPresentation
	}
	if c.Opal.CacheTTL == 0 {
		c.Opal.CacheTTL = Duration(DefaultCacheTTL)
	}
	if c.Opal.BatchSize == 0 {
		c.Opal.BatchSize = DefaultBatchSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate checks the values a server cannot start without.
func (c *Config) Validate() error {
	if c.Opal.URL == "" {
		return fmt.Errorf("opal.url is required")
	}
	if !isPresentation(c.Opal.Presentation) {
		return fmt.Errorf("opal.presentation %q must be one of %s", c.Opal.Presentation, strings.Join(presentations, ", "))
	}
	if c.Opal.BatchSize < 0 {
		return fmt.Errorf("opal.batch_size must be positive, got %d", c.Opal.BatchSize)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func isPresentation(name string) bool {
	for _, p := range presentations {
		if p == name {
			return true
		}
	}
	return false
}

// SlogLevel returns the configured log level. Call after Validate.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLevel(c.Logging.Level)
	return level
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

var secretPattern = regexp.MustCompile(`\$\{([A-Z_]+):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	if c.Opal.Username, err = ResolveValue(c.Opal.Username); err != nil {
		return fmt.Errorf("opal username: %w", err)
	}
	if c.Opal.Password, err = ResolveValue(c.Opal.Password); err != nil {
		return fmt.Errorf("opal password: %w", err)
	}

	tokens := make(map[string]string, len(c.Server.Tokens))
	for token, identity := range c.Server.Tokens {
		resolved, err := ResolveValue(token)
		if err != nil {
			return fmt.Errorf("token of %s: %w", identity, err)
		}
		tokens[resolved] = identity
	}
	if len(tokens) > 0 {
		c.Server.Tokens = tokens
	}
	return nil
}

// ResolveValue resolves a ${ENV:NAME} reference. Other values pass through.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	switch provider, ref := matches[1], matches[2]; provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}
