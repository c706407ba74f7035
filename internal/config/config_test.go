package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opal-airport.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `version: 1
opal:
  url: https://opal.example.org
  username: administrator
  password: password
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Opal.URL != "https://opal.example.org" {
		t.Errorf("expected opal url, got %s", cfg.Opal.URL)
	}
	if cfg.Server.Listen != DefaultListen {
		t.Errorf("expected default listen %s, got %s", DefaultListen, cfg.Server.Listen)
	}
	if cfg.Opal.Presentation != "values" {
		t.Errorf("expected default presentation values, got %s", cfg.Opal.Presentation)
	}
	if time.Duration(cfg.Opal.CacheTTL) != 300*time.Second {
		t.Errorf("expected default cache ttl 300s, got %s", cfg.Opal.CacheTTL)
	}
	if cfg.Opal.BatchSize != 10000 {
		t.Errorf("expected default batch size 10000, got %d", cfg.Opal.BatchSize)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.SlogLevel())
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `version: 1
server:
  listen: 127.0.0.1:6000
  address: flight.example.org:6000
  max_message_size: 16777216
  tokens:
    abc: analyst
opal:
  url: https://opal.example.org
  presentation: variables
  cache_ttl: 1m
  batch_size: 500
  languages: [en, fr]
  timeout: 30s
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Tokens["abc"] != "analyst" {
		t.Errorf("expected token abc, got %v", cfg.Server.Tokens)
	}
	if time.Duration(cfg.Opal.CacheTTL) != time.Minute || time.Duration(cfg.Opal.Timeout) != 30*time.Second {
		t.Errorf("unexpected durations: ttl %s timeout %s", cfg.Opal.CacheTTL, cfg.Opal.Timeout)
	}
	if cfg.Opal.BatchSize != 500 || len(cfg.Opal.Languages) != 2 {
		t.Errorf("unexpected opal config: %+v", cfg.Opal)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", cfg.SlogLevel())
	}
}

func TestDurationForms(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"300", 300 * time.Second},
		{"90s", 90 * time.Second},
		{"5m", 5 * time.Minute},
		{`"120"`, 0},
		{"-1", -time.Second},
	}
	for _, tt := range tests {
		doc := "version: 1\nopal:\n  url: http://opal\n  cache_ttl: " + tt.value + "\n  timeout: " + tt.value + "\n"
		cfg, err := Parse([]byte(doc))
		if tt.want == 0 {
			if err == nil || !strings.Contains(err.Error(), "number of seconds") {
				t.Errorf("%s: expected a duration error, got %v", tt.value, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.value, err)
			continue
		}
		if time.Duration(cfg.Opal.CacheTTL) != tt.want || time.Duration(cfg.Opal.Timeout) != tt.want {
			t.Errorf("%s: got ttl %s timeout %s, want %s", tt.value, cfg.Opal.CacheTTL, cfg.Opal.Timeout, tt.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"version", "version: 99\nopal:\n  url: http://opal\n", "unsupported config version"},
		{"missing url", "version: 1\n", "opal.url is required"},
		{"presentation", "version: 1\nopal:\n  url: http://opal\n  presentation: dictionary\n", "opal.presentation"},
		{"batch size", "version: 1\nopal:\n  url: http://opal\n  batch_size: -1\n", "opal.batch_size"},
		{"log level", "version: 1\nopal:\n  url: http://opal\nlogging:\n  level: loud\n", "invalid log level"},
		{"yaml", "version: [1\n", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSecretReferences(t *testing.T) {
	t.Setenv("OPAL_AIRPORT_TEST_PASSWORD", "s3cret")
	t.Setenv("OPAL_AIRPORT_TEST_TOKEN", "tok")

	cfg, err := Parse([]byte(`version: 1
server:
  tokens:
    "${ENV:OPAL_AIRPORT_TEST_TOKEN}": analyst
opal:
  url: http://opal
  username: administrator
  password: ${ENV:OPAL_AIRPORT_TEST_PASSWORD}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Opal.Password != "s3cret" {
		t.Errorf("expected resolved password, got %q", cfg.Opal.Password)
	}
	if cfg.Server.Tokens["tok"] != "analyst" {
		t.Errorf("expected resolved token, got %v", cfg.Server.Tokens)
	}

	_, err = Parse([]byte("version: 1\nopal:\n  url: http://opal\n  password: ${ENV:OPAL_AIRPORT_TEST_UNSET}\n"))
	if err == nil || !strings.Contains(err.Error(), "OPAL_AIRPORT_TEST_UNSET") {
		t.Errorf("expected unset variable error, got %v", err)
	}
}

func TestResolveValue(t *testing.T) {
	val, err := ResolveValue("plain-text-value")
	if err != nil || val != "plain-text-value" {
		t.Errorf("plain values should pass through, got %q, %v", val, err)
	}
	if _, err := ResolveValue("${VAULT:secret/opal}"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Listen != DefaultListen || cfg.Opal.Presentation != DefaultPresentation {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("default config has no opal url and should not validate")
	}
}
