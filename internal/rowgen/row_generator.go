package rowgen

import (
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// RowGenerator composes one timestamp generator and one column generator
// per schema column (spec §4.2 "RowGenerator").
type RowGenerator struct {
	ts      *TimestampGenerator
	columns []ColumnGenerator
}

// NewRowGenerator builds a composite generator over ts and columns, in
// schema order.
func NewRowGenerator(ts *TimestampGenerator, columns []ColumnGenerator) *RowGenerator {
	return &RowGenerator{ts: ts, columns: columns}
}

// GenerateRow produces one row: a timestamp plus one cell per column.
func (g *RowGenerator) GenerateRow() (model.Row, error) {
	cells := make([]model.Cell, len(g.columns))
	for i, col := range g.columns {
		cell, err := col.GenerateOne()
		if err != nil {
			return model.Row{}, err
		}
		cells[i] = cell
	}
	return model.Row{Timestamp: g.ts.Next(), Columns: cells}, nil
}

// GenerateBatch fills n rows, column by column, to maximize cache reuse
// (spec §4.2: "generate_batch(n) fills n rows column by column").
func (g *RowGenerator) GenerateBatch(n int) ([]model.Row, error) {
	rows := make([]model.Row, n)
	timestamps := g.ts.NextMany(n)
	for i := range rows {
		rows[i] = model.Row{Timestamp: timestamps[i], Columns: make([]model.Cell, len(g.columns))}
	}
	for colIdx, col := range g.columns {
		values, err := col.GenerateMany(n)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			rows[i].Columns[colIdx] = v
		}
	}
	return rows, nil
}

// Reset rewinds the timestamp generator and any resettable column
// generators (currently OrderGenerator) to their initial state.
func (g *RowGenerator) Reset() {
	g.ts.Reset()
	for _, col := range g.columns {
		if og, ok := col.(*OrderGenerator); ok {
			og.Reset()
		}
	}
}
