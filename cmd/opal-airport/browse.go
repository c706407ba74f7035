package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/hugr-lab/opal-airport/adapter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(32)
	table.SetRowLine(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	return table
}

func newSchemasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the schemas of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newAdapter(cmd)
			if err != nil {
				return err
			}
			schemas, err := a.ListSchemas(cmd.Context())
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "schema")
			for _, s := range schemas {
				table.Append([]string{s})
			}
			table.Render()
			return nil
		},
	}
}

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [schema]",
		Short: "List the tables of one or all schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newAdapter(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			schemas := args
			if len(schemas) == 0 {
				if schemas, err = a.ListSchemas(ctx); err != nil {
					return err
				}
			}

			table := newTable(cmd.OutOrStdout(), "schema", "table")
			for _, s := range schemas {
				tables, err := a.ListTables(ctx, s)
				if err != nil {
					return err
				}
				for _, t := range tables {
					table.Append([]string{t.Schema, t.Table})
				}
			}
			table.Render()
			return nil
		},
	}
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema> <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newAdapter(cmd)
			if err != nil {
				return err
			}
			ts, err := a.TableSchema(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (Opal %s)\n", ts.Ref.Name(), ts.Ref.RemoteName())
			table := newTable(cmd.OutOrStdout(), "column", "type", "kind")
			for _, c := range ts.Columns {
				table.Append([]string{c.Name, c.Type.String(), c.Kind.String()})
			}
			table.Render()
			return nil
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	var (
		columns []string
		offset  int
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "query <schema> <table>",
		Short: "Print the rows of a table",
		Long: `Print the rows of a table. Without --limit the whole table is read in
batches of --batch-size rows.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newAdapter(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if limit > 0 || offset > 0 {
				rows, err := a.Rows(ctx, args[0], args[1], columns, &adapter.Page{Offset: offset, Limit: limit})
				if err != nil {
					return err
				}
				header := columns
				if len(header) == 0 {
					ts, err := a.TableSchema(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					header = ts.Names()
				}
				table := newTable(cmd.OutOrStdout(), header...)
				table.AppendBulk(lo.Map(rows, func(row []any, _ int) []string { return formatRow(row) }))
				table.Render()
				return nil
			}

			cur, err := a.Cursor(ctx, args[0], args[1], columns)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), cur.Columns()...)
			for {
				batch, err := cur.NextBatch()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				table.AppendBulk(lo.Map(batch, func(row []any, _ int) []string { return formatRow(row) }))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to print (default all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "first row to print")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of rows to print (0 reads the whole table)")
	return cmd
}

func formatRow(row []any) []string {
	return lo.Map(row, func(v any, _ int) string {
		switch v := v.(type) {
		case nil:
			return "NULL"
		case string:
			return v
		case bool:
			return strconv.FormatBool(v)
		case int:
			return strconv.Itoa(v)
		default:
			return fmt.Sprint(v)
		}
	})
}
