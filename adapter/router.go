package adapter

import (
	"strings"
)

// SourceKind discriminates ColumnSource.
type SourceKind int

const (
	// SourceIdentifier reads the entity identifier of a value set.
	SourceIdentifier SourceKind = iota + 1
	// SourceField reads a remote variable by name.
	SourceField
	// SourceAttribute reads a classification attribute or a locale text.
	SourceAttribute
	// SourceMetadata reads a fixed property of the row object.
	SourceMetadata
)

// ColumnSource says how to compute a column value from a remote row object.
// Only the fields relevant to Kind are set.
type ColumnSource struct {
	Kind SourceKind

	// Field is the remote variable name (SourceField).
	Field string

	// Namespace, Attribute and Locale select an attribute (SourceAttribute).
	// Locale texts use Attribute as the text kind ("label", "title", ...).
	Namespace string
	Attribute string
	Locale    string

	// Tag names the fixed property (SourceMetadata).
	Tag string
}

// Router maps column names to their sources for one presentation.
// Resolution order, first match wins:
//
//  1. fixed columns of the presentation
//  2. "<prefix>:<locale>" for the presentation's locale prefixes
//  3. the table's taxonomy::vocabulary columns
//  4. the table's variable columns
//
// A nil result means the column has no mapping and renders as NULL.
type Router struct {
	fixed    map[string]ColumnSource
	prefixes []string
}

// NewRouter creates a router from the fixed columns and the locale prefixes
// a presentation recognizes.
func NewRouter(fixed map[string]ColumnSource, prefixes ...string) *Router {
	return &Router{fixed: fixed, prefixes: prefixes}
}

// Resolve returns the source of column in ts.
func (r *Router) Resolve(ts *TableSchema, column string) *ColumnSource {
	if src, ok := r.fixed[column]; ok {
		return &src
	}

	for _, prefix := range r.prefixes {
		if !strings.HasPrefix(column, prefix+":") {
			continue
		}
		locale := column[strings.LastIndex(column, ":")+1:]
		return &ColumnSource{
			Kind:      SourceAttribute,
			Attribute: prefix,
			Locale:    matchLanguage(ts.languages, locale),
		}
	}

	if voc, ok := ts.vocabularies[column]; ok {
		return &ColumnSource{
			Kind:      SourceAttribute,
			Namespace: voc.Taxonomy,
			Attribute: voc.Vocabulary,
		}
	}

	if field, ok := ts.fields[column]; ok {
		return &ColumnSource{Kind: SourceField, Field: field}
	}
	return nil
}

// Sources resolves a projection. Columns of the schema use the precomputed
// decision; others go through Resolve.
func (r *Router) Sources(ts *TableSchema, columns []string) []*ColumnSource {
	out := make([]*ColumnSource, len(columns))
	for i, name := range columns {
		if src, ok := ts.sources[name]; ok {
			out[i] = src
			continue
		}
		out[i] = r.Resolve(ts, name)
	}
	return out
}

// matchLanguage maps a locale token from a column name back to the
// configured language spelling; SQL engines may fold identifier case.
func matchLanguage(languages []string, locale string) string {
	for _, lang := range languages {
		if strings.EqualFold(lang, locale) {
			return lang
		}
	}
	return locale
}
