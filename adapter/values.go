package adapter

import (
	"context"

	"github.com/hugr-lab/opal-airport/naming"
	"github.com/hugr-lab/opal-airport/opal"
)

// IDColumn is the entity identifier column of every values table.
const IDColumn = "_id"

var valuesFixed = map[string]ColumnSource{
	IDColumn: {Kind: SourceIdentifier},
}

type variableLister interface {
	ListVariables(ctx context.Context, datasource, table string) ([]opal.Variable, error)
}

type valueSetLister interface {
	ListValueSets(ctx context.Context, datasource, table string, offset, limit int) (*opal.ValueSets, error)
}

// valuesBuilder exposes one column per variable after the identifier.
type valuesBuilder struct {
	remote variableLister
	router *Router
}

func (b *valuesBuilder) BuildSchema(ctx context.Context, ref TableRef) (*TableSchema, error) {
	variables, err := b.remote.ListVariables(ctx, ref.Datasource, ref.RemoteTable)
	if err != nil {
		return nil, err
	}

	sb := newTableSchema(ref, nil)
	names := naming.NewResolver(IDColumn)
	sb.add(IDColumn, TypeText, KindIdentifier)
	for _, v := range variables {
		sb.addField(names.Unique(v.Name), v.Name)
	}
	return sb.build(b.router), nil
}

// valuesMaterializer reads pages of value sets; one value set is one row.
type valuesMaterializer struct {
	remote valueSetLister
}

func (m *valuesMaterializer) Batched() bool { return true }

// Fetch reads one page. An unpaged request returns the whole table, so an
// offset without a limit is applied locally.
func (m *valuesMaterializer) Fetch(ctx context.Context, ts *TableSchema, sources []*ColumnSource, offset, limit int) ([][]any, error) {
	page, err := m.remote.ListValueSets(ctx, ts.Ref.Datasource, ts.Ref.RemoteTable, offset, limit)
	if err != nil {
		return nil, err
	}
	sets := page.ValueSets
	if limit <= 0 {
		sets = window(sets, offset, 0)
	}

	// column -> position within each value set, -1 when the page lacks it
	positions := make(map[string]int, len(page.Variables))
	for i, name := range page.Variables {
		if _, ok := positions[name]; !ok {
			positions[name] = i
		}
	}
	pos := make([]int, len(sources))
	for i, src := range sources {
		pos[i] = -1
		if src != nil && src.Kind == SourceField {
			if p, ok := positions[src.Field]; ok {
				pos[i] = p
			}
		}
	}

	rows := make([][]any, 0, len(sets))
	for _, set := range sets {
		row := make([]any, len(sources))
		for i, src := range sources {
			switch {
			case src == nil:
			case src.Kind == SourceIdentifier:
				row[i] = set.Identifier
			case src.Kind == SourceField:
				if p := pos[i]; p >= 0 && p < len(set.Values) {
					row[i] = set.Values[p].String()
				} else {
					row[i] = ""
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
