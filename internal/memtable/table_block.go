package memtable

import (
	"github.com/cockroachdb/errors"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// defaultArenaBytesPerRow bounds the per-row average size assumed for
// variable-width arenas when no explicit length hint is supplied.
const defaultArenaBytesPerRow = 64

// TableBlock is the per-table portion of a MemoryBlock: a fixed-capacity
// columnar buffer of at most maxRows rows for one child table. See spec §3.
type TableBlock struct {
	tableName string
	maxRows   int

	timestamps []int64
	fixedCols  []*fixedColumn
	varCols    []*varColumn
	// colIsVar[i] selects fixedCols vs varCols for schema column i.
	colIsVar []bool
	isNull   [][]byte // [col][row]

	usedRows int
}

func newTableBlock(schema []model.ColumnConfig, maxRows int) *TableBlock {
	tb := &TableBlock{
		maxRows:    maxRows,
		timestamps: make([]int64, maxRows),
		colIsVar:   make([]bool, len(schema)),
		isNull:     make([][]byte, len(schema)),
	}
	tb.fixedCols = make([]*fixedColumn, len(schema))
	tb.varCols = make([]*varColumn, len(schema))
	for i, col := range schema {
		tb.isNull[i] = make([]byte, maxRows)
		if col.Type.IsVarLength() {
			tb.colIsVar[i] = true
			width := col.Length
			if width <= 0 {
				width = defaultArenaBytesPerRow
			}
			if col.Type == model.TagNchar {
				width *= 2 // UTF-16 code units
			}
			tb.varCols[i] = newVarColumn(col.Type, maxRows, width*maxRows)
		} else {
			tb.fixedCols[i] = newFixedColumn(col.Type, maxRows)
		}
	}
	return tb
}

// UsedRows returns the number of rows filled so far.
func (tb *TableBlock) UsedRows() int { return tb.usedRows }

// TableName returns the table this block is bound to, set by Reset.
func (tb *TableBlock) TableName() string { return tb.tableName }

// Timestamp returns the timestamp of row i.
func (tb *TableBlock) Timestamp(i int) int64 { return tb.timestamps[i] }

// IsNull reports whether column col of row i is null.
func (tb *TableBlock) IsNull(col, row int) bool { return tb.isNull[col][row] != 0 }

// Cell returns the value of column col at row i. The caller must have
// checked IsNull first; calling Cell on a null cell returns the zero value
// for the column's tag.
func (tb *TableBlock) Cell(col, row int) model.Cell {
	if tb.colIsVar[col] {
		vc := tb.varCols[col]
		return bytesToCell(vc.tag, vc.get(row))
	}
	return tb.fixedCols[col].get(row)
}

// AddRow appends row to the block. It requires usedRows < maxRows.
func (tb *TableBlock) AddRow(row model.Row) error {
	if tb.usedRows >= tb.maxRows {
		return errors.Errorf("memtable: table block %q is full (max_rows=%d)", tb.tableName, tb.maxRows)
	}
	i := tb.usedRows
	tb.timestamps[i] = row.Timestamp
	for col, cell := range row.Columns {
		if cell.Null {
			tb.isNull[col][i] = 1
			continue
		}
		tb.isNull[col][i] = 0
		if tb.colIsVar[col] {
			tb.varCols[col].append(i, cellBytes(tb.varCols[col].tag, cell))
		} else {
			tb.fixedCols[col].set(i, cell)
		}
	}
	tb.usedRows++
	return nil
}

// AddRowsBulk appends rows timestamp-first, then column by column, to
// maximize cache locality for a full batch write (spec §4.1 "Bulk variant").
func (tb *TableBlock) AddRowsBulk(rows []model.Row) error {
	if tb.usedRows+len(rows) > tb.maxRows {
		return errors.Errorf("memtable: table block %q cannot hold %d more rows (used=%d max=%d)",
			tb.tableName, len(rows), tb.usedRows, tb.maxRows)
	}
	base := tb.usedRows
	for i, row := range rows {
		tb.timestamps[base+i] = row.Timestamp
	}
	numCols := len(tb.colIsVar)
	for col := 0; col < numCols; col++ {
		for i, row := range rows {
			r := base + i
			cell := row.Columns[col]
			if cell.Null {
				tb.isNull[col][r] = 1
				continue
			}
			tb.isNull[col][r] = 0
			if tb.colIsVar[col] {
				tb.varCols[col].append(r, cellBytes(tb.varCols[col].tag, cell))
			} else {
				tb.fixedCols[col].set(r, cell)
			}
		}
	}
	tb.usedRows += len(rows)
	return nil
}

// reset restores the block to its just-acquired state: usedRows=0, variable
// cursors=0. Null bitmaps and fixed buffers are intentionally left
// unzeroed past usedRows; see DESIGN.md "Null-bitmap reset skip".
func (tb *TableBlock) reset() {
	tb.tableName = ""
	tb.usedRows = 0
	for _, vc := range tb.varCols {
		if vc != nil {
			vc.reset()
		}
	}
}

func (tb *TableBlock) bindTo(tableName string) {
	tb.tableName = tableName
}
