package adapter

import (
	"context"
	"strings"

	"github.com/hugr-lab/opal-airport/naming"
	"github.com/hugr-lab/opal-airport/opal"
)

var variableColumns = []Column{
	{Name: "name", Type: TypeText, Kind: KindMetadata},
	{Name: "entity_type", Type: TypeText, Kind: KindMetadata},
	{Name: "value_type", Type: TypeText, Kind: KindMetadata},
	{Name: "repeatable", Type: TypeBoolean, Kind: KindMetadata},
	{Name: "occurrence_group", Type: TypeText, Kind: KindMetadata},
	{Name: "mime_type", Type: TypeText, Kind: KindMetadata},
	{Name: "referenced_entity_type", Type: TypeText, Kind: KindMetadata},
	{Name: "unit", Type: TypeText, Kind: KindMetadata},
	{Name: "index", Type: TypeInteger, Kind: KindMetadata},
	{Name: "categories", Type: TypeText, Kind: KindMetadata},
	{Name: "script", Type: TypeText, Kind: KindMetadata},
}

var variableLocaleTexts = []string{"label", "description"}

var variablesFixed = metadataSources(variableColumns)

func metadataSources(columns []Column) map[string]ColumnSource {
	out := make(map[string]ColumnSource, len(columns))
	for _, c := range columns {
		out[c.Name] = ColumnSource{Kind: SourceMetadata, Tag: c.Name}
	}
	return out
}

// variablesBuilder exposes one row per variable: fixed metadata columns,
// label and description per display language, then one column per
// taxonomy vocabulary.
type variablesBuilder struct {
	classifications *classificationCache
	router          *Router
}

func (b *variablesBuilder) BuildSchema(ctx context.Context, ref TableRef) (*TableSchema, error) {
	cls, err := b.classifications.Get(ctx)
	if err != nil {
		return nil, err
	}

	sb := newTableSchema(ref, cls.Languages)
	names := naming.NewResolver()
	for _, c := range variableColumns {
		names.Register(c.Name)
		sb.add(c.Name, c.Type, c.Kind)
	}
	addLocaleColumns(sb, names, variableLocaleTexts, cls.Languages)
	for _, voc := range cls.Vocabularies() {
		sb.addVocabulary(names.Unique(voc.Taxonomy+"::"+voc.Vocabulary), voc)
	}
	return sb.build(b.router), nil
}

// addLocaleColumns adds "<text>:<language>" for every text, then every language.
func addLocaleColumns(sb *tableSchemaBuilder, names *naming.Resolver, texts, languages []string) {
	for _, text := range texts {
		for _, lang := range languages {
			name := text + ":" + lang
			if names.Has(name) {
				continue
			}
			names.Register(name)
			sb.add(name, TypeText, KindLocale)
		}
	}
}

// variablesMaterializer reads the whole variable list of a table per call.
type variablesMaterializer struct {
	remote variableLister
}

func (m *variablesMaterializer) Batched() bool { return false }

func (m *variablesMaterializer) Fetch(ctx context.Context, ts *TableSchema, sources []*ColumnSource, offset, limit int) ([][]any, error) {
	variables, err := m.remote.ListVariables(ctx, ts.Ref.Datasource, ts.Ref.RemoteTable)
	if err != nil {
		return nil, err
	}
	variables = window(variables, offset, limit)

	rows := make([][]any, 0, len(variables))
	for i := range variables {
		v := &variables[i]
		row := make([]any, len(sources))
		for j, src := range sources {
			if src != nil {
				row[j] = variableValue(v, src)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func variableValue(v *opal.Variable, src *ColumnSource) any {
	switch src.Kind {
	case SourceMetadata:
		switch src.Tag {
		case "name":
			return v.Name
		case "entity_type":
			return v.EntityType
		case "value_type":
			return v.ValueType
		case "repeatable":
			return v.IsRepeatable
		case "occurrence_group":
			return nullable(v.OccurrenceGroup)
		case "mime_type":
			return nullable(v.MimeType)
		case "referenced_entity_type":
			return nullable(v.ReferencedEntityType)
		case "unit":
			return nullable(v.Unit)
		case "index":
			return v.Index
		case "categories":
			if len(v.Categories) == 0 {
				return nil
			}
			return strings.Join(v.CategoryNames(), ",")
		case "script":
			return attributeValue(v, "", "script", "")
		}
	case SourceAttribute:
		return attributeValue(v, src.Namespace, src.Attribute, src.Locale)
	}
	return nil
}

func attributeValue(v *opal.Variable, namespace, name, locale string) any {
	if value, ok := v.AttributeValue(namespace, name, locale); ok {
		return value
	}
	return nil
}
