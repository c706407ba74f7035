package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/hugr-lab/opal-airport/naming"
	"github.com/hugr-lab/opal-airport/opal"
)

// SystemSchema is the only schema of the administration presentation.
const SystemSchema = "system"

const (
	TableTaxonomies   = "taxonomies"
	TableVocabularies = "vocabularies"
	TableTerms        = "terms"
	TableDatabases    = "databases"
	TablePlugins      = "plugins"
	TableProjects     = "projects"
)

var adminTableOrder = []string{
	TableTaxonomies, TableVocabularies, TableTerms,
	TableDatabases, TablePlugins, TableProjects,
}

var adminLocaleTexts = []string{"title", "description", "keywords"}

// adminSource is what the administration tables are read from.
type adminSource interface {
	ListTaxonomies(ctx context.Context) ([]opal.Taxonomy, error)
	ListProjects(ctx context.Context) ([]opal.Project, error)
	ListDatabases(ctx context.Context) ([]opal.Database, error)
	PluginPackages(ctx context.Context) (*opal.PluginPackages, error)
}

// record is one row of an administration table before projection.
type record struct {
	fields map[string]any
	texts  map[string][]opal.LocaleText
}

type adminTable struct {
	columns []Column
	// localized tables carry title/description/keywords per language
	localized bool
	records   func(ctx context.Context, remote adminSource) ([]record, error)
}

func textColumn(name string) Column { return Column{Name: name, Type: TypeText, Kind: KindMetadata} }
func boolColumn(name string) Column { return Column{Name: name, Type: TypeBoolean, Kind: KindMetadata} }

var adminTables = map[string]adminTable{
	TableTaxonomies: {
		columns:   []Column{textColumn("name"), textColumn("author"), textColumn("license")},
		localized: true,
		records:   taxonomyRecords,
	},
	TableVocabularies: {
		columns:   []Column{textColumn("name"), textColumn("taxonomy"), boolColumn("repeatable")},
		localized: true,
		records:   vocabularyRecords,
	},
	TableTerms: {
		columns:   []Column{textColumn("name"), textColumn("taxonomy"), textColumn("vocabulary")},
		localized: true,
		records:   termRecords,
	},
	TableDatabases: {
		columns: []Column{
			textColumn("name"), textColumn("usage"), boolColumn("default_storage"), boolColumn("has_datasource"),
			boolColumn("used_for_identifiers"), textColumn("type"), textColumn("url"), textColumn("username"),
		},
		records: databaseRecords,
	},
	TablePlugins: {
		columns: []Column{
			textColumn("name"), textColumn("type"), textColumn("title"), textColumn("description"), textColumn("author"),
			textColumn("maintainer"), textColumn("license"), textColumn("version"), textColumn("opal_version"), textColumn("website"),
		},
		records: pluginRecords,
	},
	TableProjects: {
		columns: []Column{
			textColumn("name"), textColumn("title"), textColumn("description"), textColumn("tags"),
			textColumn("database"), textColumn("vcf_store_service"),
		},
		records: projectRecords,
	},
}

var adminFixed = func() map[string]ColumnSource {
	var all []Column
	for _, name := range adminTableOrder {
		all = append(all, adminTables[name].columns...)
	}
	return metadataSources(lo.UniqBy(all, func(c Column) string { return c.Name }))
}()

type adminBuilder struct {
	classifications *classificationCache
	router          *Router
}

func (b *adminBuilder) BuildSchema(ctx context.Context, ref TableRef) (*TableSchema, error) {
	table, ok := adminTables[ref.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, ref.Name())
	}

	var languages []string
	if table.localized {
		cls, err := b.classifications.Get(ctx)
		if err != nil {
			return nil, err
		}
		languages = cls.Languages
	}

	sb := newTableSchema(ref, languages)
	names := naming.NewResolver()
	for _, c := range table.columns {
		names.Register(c.Name)
		sb.add(c.Name, c.Type, c.Kind)
	}
	addLocaleColumns(sb, names, adminLocaleTexts, languages)
	return sb.build(b.router), nil
}

// adminMaterializer reads the whole listing per call.
type adminMaterializer struct {
	remote adminSource
}

func (m *adminMaterializer) Batched() bool { return false }

func (m *adminMaterializer) Fetch(ctx context.Context, ts *TableSchema, sources []*ColumnSource, offset, limit int) ([][]any, error) {
	table, ok := adminTables[ts.Ref.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, ts.Ref.Name())
	}
	records, err := table.records(ctx, m.remote)
	if err != nil {
		return nil, err
	}
	records = window(records, offset, limit)

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(sources))
		for i, src := range sources {
			if src == nil {
				continue
			}
			switch src.Kind {
			case SourceMetadata:
				row[i] = rec.fields[src.Tag]
			case SourceAttribute:
				if t, ok := opal.FindText(rec.texts[src.Attribute], src.Locale); ok {
					row[i] = t
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func localeTexts(title, description, keywords []opal.LocaleText) map[string][]opal.LocaleText {
	return map[string][]opal.LocaleText{
		"title":       title,
		"description": description,
		"keywords":    keywords,
	}
}

func taxonomyRecords(ctx context.Context, remote adminSource) ([]record, error) {
	taxonomies, err := remote.ListTaxonomies(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(taxonomies, func(t opal.Taxonomy, _ int) record {
		return record{
			fields: map[string]any{
				"name":    t.Name,
				"author":  nullable(t.Author),
				"license": nullable(t.License),
			},
			texts: localeTexts(t.Title, t.Description, t.Keywords),
		}
	}), nil
}

func vocabularyRecords(ctx context.Context, remote adminSource) ([]record, error) {
	taxonomies, err := remote.ListTaxonomies(ctx)
	if err != nil {
		return nil, err
	}
	var out []record
	for _, t := range taxonomies {
		for _, v := range t.Vocabularies {
			out = append(out, record{
				fields: map[string]any{
					"name":       v.Name,
					"taxonomy":   t.Name,
					"repeatable": v.Repeatable,
				},
				texts: localeTexts(v.Title, v.Description, v.Keywords),
			})
		}
	}
	return out, nil
}

func termRecords(ctx context.Context, remote adminSource) ([]record, error) {
	taxonomies, err := remote.ListTaxonomies(ctx)
	if err != nil {
		return nil, err
	}
	var out []record
	for _, t := range taxonomies {
		for _, v := range t.Vocabularies {
			for _, term := range v.Terms {
				out = append(out, record{
					fields: map[string]any{
						"name":       term.Name,
						"taxonomy":   t.Name,
						"vocabulary": v.Name,
					},
					texts: localeTexts(term.Title, term.Description, term.Keywords),
				})
			}
		}
	}
	return out, nil
}

func databaseRecords(ctx context.Context, remote adminSource) ([]record, error) {
	databases, err := remote.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(databases, func(d opal.Database, _ int) record {
		return record{fields: map[string]any{
			"name":                 d.Name,
			"usage":                nullable(d.Usage),
			"default_storage":      d.DefaultStorage,
			"has_datasource":       d.HasDatasource,
			"used_for_identifiers": d.UsedForIdentifiers,
			"type":                 nullable(d.Type()),
			"url":                  nullable(d.URL()),
			"username":             nullable(d.Username()),
		}}
	}), nil
}

func pluginRecords(ctx context.Context, remote adminSource) ([]record, error) {
	packages, err := remote.PluginPackages(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(packages.Packages, func(p opal.PluginPackage, _ int) record {
		return record{fields: map[string]any{
			"name":         p.Name,
			"type":         nullable(p.Type),
			"title":        nullable(p.Title),
			"description":  nullable(p.Description),
			"author":       nullable(p.Author),
			"maintainer":   nullable(p.Maintainer),
			"license":      nullable(p.License),
			"version":      nullable(p.Version),
			"opal_version": nullable(p.OpalVersion),
			"website":      nullable(p.Website),
		}}
	}), nil
}

func projectRecords(ctx context.Context, remote adminSource) ([]record, error) {
	projects, err := remote.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(projects, func(p opal.Project, _ int) record {
		var tags any
		if len(p.Tags) > 0 {
			tags = strings.Join(p.Tags, "|")
		}
		return record{fields: map[string]any{
			"name":              p.Name,
			"title":             nullable(p.Title),
			"description":       nullable(p.Description),
			"tags":              tags,
			"database":          nullable(p.Database),
			"vcf_store_service": nullable(p.VcfStoreService),
		}}
	}), nil
}
