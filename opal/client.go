// Package opal is a typed client for the Opal REST API.
//
// Only the read endpoints needed to expose Opal as a relational catalog are
// covered. Every call either decodes a success payload or fails: non-success
// responses are reported as *StatusError and transport failures are wrapped
// with the name of the resource being read. Nothing is retried.
package opal

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
)

// AuthScheme is the authorization scheme Opal expects for basic credentials.
const AuthScheme = "X-Opal-Auth"

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 1024

// Client reads from one Opal server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the Opal server at baseURL authenticating
// with the given credentials.
func NewClient(baseURL, username, password string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("opal url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid opal url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid opal url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		authHeader: AuthScheme + " " + base64.StdEncoding.EncodeToString([]byte(username+":"+password)),
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.baseURL.String()
}

// ListDatasources lists all datasources with their table names.
func (c *Client) ListDatasources(ctx context.Context) ([]Datasource, error) {
	var out []Datasource
	if err := c.get(ctx, "opal datasources", nil, &out, "ws", "datasources"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListVariables lists the variables of a value table in index order.
func (c *Client) ListVariables(ctx context.Context, datasource, table string) ([]Variable, error) {
	var out []Variable
	resource := fmt.Sprintf("'%s.%s' variables", datasource, table)
	if err := c.get(ctx, resource, nil, &out, "ws", "datasource", datasource, "table", table, "variables"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListValueSets reads one page of a value table. A limit <= 0 requests the
// whole table in one response.
func (c *Client) ListValueSets(ctx context.Context, datasource, table string, offset, limit int) (*ValueSets, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(limit)},
		}
	}
	out := &ValueSets{}
	resource := fmt.Sprintf("'%s.%s' values", datasource, table)
	if err := c.get(ctx, resource, query, out, "ws", "datasource", datasource, "table", table, "valueSets"); err != nil {
		return nil, err
	}
	return out, nil
}

// GeneralConf reads the general configuration (display languages).
func (c *Client) GeneralConf(ctx context.Context) (*GeneralConf, error) {
	out := &GeneralConf{}
	if err := c.get(ctx, "opal general configuration", nil, out, "ws", "system", "conf", "general"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTaxonomies reads the whole classification hierarchy.
func (c *Client) ListTaxonomies(ctx context.Context) ([]Taxonomy, error) {
	var out []Taxonomy
	if err := c.get(ctx, "opal taxonomies", nil, &out, "ws", "system", "conf", "taxonomies"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.get(ctx, "opal projects", nil, &out, "ws", "projects"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDatabases(ctx context.Context) ([]Database, error) {
	var out []Database
	if err := c.get(ctx, "opal databases", nil, &out, "ws", "system", "databases"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PluginPackages(ctx context.Context) (*PluginPackages, error) {
	out := &PluginPackages{}
	if err := c.get(ctx, "opal plugins", nil, out, "ws", "plugins"); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs an authenticated GET on the joined path and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, resource string, query url.Values, out any, path ...string) error {
	u := c.baseURL.JoinPath(path...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", resource, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Opal request", "resource", resource, "url", u.Redacted())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode %s: %w", resource, err)
	}
	return nil
}
