package adapter

import (
	"context"
	"errors"
	"io"
)

// Cursor reads a table in batches. Use either NextBatch or Next/Row, not both.
type Cursor struct {
	ctx       context.Context
	ts        *TableSchema
	columns   []string
	sources   []*ColumnSource
	m         RowMaterializer
	batchSize int

	offset int
	done   bool
	err    error

	batch [][]any
	pos   int
	row   []any
}

func (a *Adapter) newCursor(ctx context.Context, ts *TableSchema, columns []string, sources []*ColumnSource) *Cursor {
	return &Cursor{
		ctx:       ctx,
		ts:        ts,
		columns:   columns,
		sources:   sources,
		m:         a.p.Materializer,
		batchSize: a.batchSize,
	}
}

// Columns returns the projected column names.
func (c *Cursor) Columns() []string { return c.columns }

// Schema returns the table schema the cursor reads.
func (c *Cursor) Schema() *TableSchema { return c.ts }

// NextBatch returns the next non-empty batch, or io.EOF at the end of the
// table. A batch shorter than the batch size ends a paged read.
func (c *Cursor) NextBatch() ([][]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, io.EOF
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return nil, err
	}

	limit := c.batchSize
	if !c.m.Batched() {
		limit = 0
	}
	rows, err := c.m.Fetch(c.ctx, c.ts, c.sources, c.offset, limit)
	if err != nil {
		c.err = err
		return nil, err
	}
	c.offset += len(rows)
	if limit == 0 || len(rows) < limit {
		c.done = true
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

// Next advances to the next row.
func (c *Cursor) Next() bool {
	for c.pos >= len(c.batch) {
		rows, err := c.NextBatch()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			c.batch, c.row = nil, nil
			return false
		}
		c.batch, c.pos = rows, 0
	}
	c.row = c.batch[c.pos]
	c.pos++
	return true
}

func (c *Cursor) Row() []any { return c.row }

func (c *Cursor) Err() error { return c.err }
