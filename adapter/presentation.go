package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugr-lab/opal-airport/opal"
)

// Presentation selectors.
const (
	PresentationValues         = "values"
	PresentationVariables      = "variables"
	PresentationAdministration = "administration"
)

// Presentations lists the supported selectors.
func Presentations() []string {
	return []string{PresentationValues, PresentationVariables, PresentationAdministration}
}

// Remote is the subset of the Opal REST API the adapter reads from.
// *opal.Client implements it.
type Remote interface {
	DatasourceLister
	ClassificationSource

	ListVariables(ctx context.Context, datasource, table string) ([]opal.Variable, error)
	ListValueSets(ctx context.Context, datasource, table string, offset, limit int) (*opal.ValueSets, error)
	ListProjects(ctx context.Context) ([]opal.Project, error)
	ListDatabases(ctx context.Context) ([]opal.Database, error)
	PluginPackages(ctx context.Context) (*opal.PluginPackages, error)
}

// SchemaBuilder derives the column list of a table.
type SchemaBuilder interface {
	BuildSchema(ctx context.Context, ref TableRef) (*TableSchema, error)
}

// RowMaterializer turns remote row objects into rows of column values.
type RowMaterializer interface {
	// Fetch returns the rows at [offset, offset+limit), one value per source.
	// A nil source yields a nil value. limit <= 0 reads every row.
	Fetch(ctx context.Context, ts *TableSchema, sources []*ColumnSource, offset, limit int) ([][]any, error)

	// Batched reports whether full reads should be split into pages.
	// Materializers that return false read the whole resource per call.
	Batched() bool
}

// Presentation bundles the strategies of one way of exposing Opal.
type Presentation struct {
	Name         string
	Index        Index
	Router       *Router
	Builder      SchemaBuilder
	Materializer RowMaterializer

	classifications *classificationCache
}

func (p *Presentation) invalidate() {
	p.Index.Invalidate()
	if p.classifications != nil {
		p.classifications.Invalidate()
	}
}

func newPresentation(name string, remote Remote, languages []string, ttl time.Duration,
	now func() time.Time, logger *slog.Logger) (*Presentation, error) {
	switch name {
	case PresentationValues:
		router := NewRouter(valuesFixed)
		return &Presentation{
			Name:         name,
			Index:        NewCatalogIndex(remote, ttl, now, logger),
			Router:       router,
			Builder:      &valuesBuilder{remote: remote, router: router},
			Materializer: &valuesMaterializer{remote: remote},
		}, nil

	case PresentationVariables:
		router := NewRouter(variablesFixed, variableLocaleTexts...)
		cls := newClassificationCache(remote, languages, true, ttl, now, logger)
		return &Presentation{
			Name:            name,
			Index:           NewCatalogIndex(remote, ttl, now, logger),
			Router:          router,
			Builder:         &variablesBuilder{classifications: cls, router: router},
			Materializer:    &variablesMaterializer{remote: remote},
			classifications: cls,
		}, nil

	case PresentationAdministration:
		router := NewRouter(adminFixed, adminLocaleTexts...)
		cls := newClassificationCache(remote, languages, false, ttl, now, logger)
		return &Presentation{
			Name:            name,
			Index:           &fixedIndex{schema: SystemSchema, tables: adminTableOrder},
			Router:          router,
			Builder:         &adminBuilder{classifications: cls, router: router},
			Materializer:    &adminMaterializer{remote: remote},
			classifications: cls,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPresentation, name)
}

// window applies offset and limit to an in-memory listing.
func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// nullable maps an absent optional string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
