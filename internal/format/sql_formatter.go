package format

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// SQLFormatter builds one INSERT statement text per block covering every
// table slot it contains (spec §4.5 "SQL formatter").
type SQLFormatter struct {
	database string
	columns  []model.ColumnConfig
}

// NewSQLFormatter constructs an unconfigured SQLFormatter; call Init before
// Format.
func NewSQLFormatter() *SQLFormatter { return &SQLFormatter{} }

// WithDatabase sets the database name prefix used in rendered table
// references (`` `db`.`table` ``); defaults to no prefix if unset.
func (f *SQLFormatter) WithDatabase(db string) *SQLFormatter {
	f.database = db
	return f
}

// Init implements Formatter.
func (f *SQLFormatter) Init(columns, tags []model.ColumnConfig) (SinkContext, error) {
	f.columns = columns
	return SinkContext{}, nil
}

func (f *SQLFormatter) tableRef(name string) string {
	if f.database == "" {
		return "`" + name + "`"
	}
	return "`" + f.database + "`.`" + name + "`"
}

// Format implements Formatter, rendering `INSERT INTO ref VALUES (...)(...)
// ref2 VALUES (...)...;` across every used table in block.
func (f *SQLFormatter) Format(block *memtable.MemoryBlock, isRecovery bool) (FormatResult, error) {
	if block == nil || block.UsedTables() == 0 {
		return FormatResult{}, errors.New("format: sql formatter given an empty block")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	for t := 0; t < block.UsedTables(); t++ {
		tb := block.Table(t)
		if t > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.tableRef(tb.TableName()))
		sb.WriteString(" VALUES ")
		for row := 0; row < tb.UsedRows(); row++ {
			sb.WriteByte('(')
			sb.WriteString(sqlLiteral(model.Cell{Tag: model.TagInt64, I64: tb.Timestamp(row)}))
			for col := range f.columns {
				sb.WriteByte(',')
				if tb.IsNull(col, row) {
					sb.WriteString("NULL")
					continue
				}
				sb.WriteString(sqlLiteral(tb.Cell(col, row)))
			}
			sb.WriteByte(')')
		}
	}
	sb.WriteByte(';')
	return FormatResult{SQL: sb.String()}, nil
}
