package adapter

import (
	"fmt"

	"github.com/samber/lo"
)

// ColumnType is the relational type of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeBoolean
	TypeInteger
)

func (t ColumnType) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	default:
		return "text"
	}
}

// ColumnKind tells where a column comes from.
type ColumnKind int

const (
	// KindIdentifier is the synthetic entity key of per-entity tables.
	KindIdentifier ColumnKind = iota
	// KindMetadata is a fixed column of the presentation.
	KindMetadata
	// KindField is one remote variable.
	KindField
	// KindLocale is a label/description/title/keywords column for one language.
	KindLocale
	// KindVocabulary is a taxonomy::vocabulary classification column.
	KindVocabulary
)

func (k ColumnKind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindMetadata:
		return "metadata"
	case KindField:
		return "field"
	case KindLocale:
		return "locale"
	case KindVocabulary:
		return "vocabulary"
	}
	return fmt.Sprintf("ColumnKind(%d)", int(k))
}

// Column is one entry of a TableSchema.
type Column struct {
	Name string
	Type ColumnType
	Kind ColumnKind
}

// TableName identifies a relational table.
type TableName struct {
	Schema string
	Table  string
}

func (n TableName) String() string {
	return n.Schema + "." + n.Table
}

// TableRef links a relational table to the Opal table it reads from.
type TableRef struct {
	Schema      string
	Table       string
	Datasource  string
	RemoteTable string
}

// RemoteName is the fully qualified Opal name, "datasource.table".
func (r TableRef) RemoteName() string {
	if r.Datasource == "" {
		return r.RemoteTable
	}
	return r.Datasource + "." + r.RemoteTable
}

// Name returns the relational name.
func (r TableRef) Name() TableName {
	return TableName{Schema: r.Schema, Table: r.Table}
}

// VocabularyRef is the classification attribute behind a vocabulary column.
type VocabularyRef struct {
	Taxonomy   string
	Vocabulary string
}

// TableSchema is the ordered column list of one table together with the
// resolved source of every column. It is immutable once built.
type TableSchema struct {
	Ref     TableRef
	Columns []Column

	// languages used for the locale columns when the schema was built
	languages []string
	// column name -> remote variable name
	fields map[string]string
	// column name -> taxonomy/vocabulary
	vocabularies map[string]VocabularyRef
	// column name -> resolved source, filled by the router
	sources map[string]*ColumnSource
}

// Names returns the column names in order.
func (ts *TableSchema) Names() []string {
	return lo.Map(ts.Columns, func(c Column, _ int) string { return c.Name })
}

// Column looks up a column by name.
func (ts *TableSchema) Column(name string) (Column, bool) {
	return lo.Find(ts.Columns, func(c Column) bool { return c.Name == name })
}

// Source returns the precomputed source of a schema column, nil if the
// column is unknown or has no mapping.
func (ts *TableSchema) Source(name string) *ColumnSource {
	return ts.sources[name]
}

// Languages returns the display languages the locale columns were built for.
func (ts *TableSchema) Languages() []string {
	return ts.languages
}

// tableSchemaBuilder accumulates columns for one table.
type tableSchemaBuilder struct {
	ts *TableSchema
}

func newTableSchema(ref TableRef, languages []string) *tableSchemaBuilder {
	return &tableSchemaBuilder{ts: &TableSchema{
		Ref:          ref,
		languages:    languages,
		fields:       make(map[string]string),
		vocabularies: make(map[string]VocabularyRef),
		sources:      make(map[string]*ColumnSource),
	}}
}

func (b *tableSchemaBuilder) add(name string, typ ColumnType, kind ColumnKind) {
	b.ts.Columns = append(b.ts.Columns, Column{Name: name, Type: typ, Kind: kind})
}

func (b *tableSchemaBuilder) addField(name, variable string) {
	b.add(name, TypeText, KindField)
	b.ts.fields[name] = variable
}

func (b *tableSchemaBuilder) addVocabulary(name string, ref VocabularyRef) {
	b.add(name, TypeText, KindVocabulary)
	b.ts.vocabularies[name] = ref
}

// build resolves every column once through the router and publishes the schema.
func (b *tableSchemaBuilder) build(router *Router) *TableSchema {
	for _, c := range b.ts.Columns {
		b.ts.sources[c.Name] = router.Resolve(b.ts, c.Name)
	}
	return b.ts
}
