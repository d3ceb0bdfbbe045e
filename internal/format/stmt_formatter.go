package format

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// StmtFormatter emits a bulk-bind descriptor that points directly into a
// MemoryBlock's columnar buffers, for the statement (v2) write path (spec
// §4.5 "Statement formatter (v2 only)").
type StmtFormatter struct {
	shape          BindShape
	superTableName string
	columns        []model.ColumnConfig
}

// NewStmtFormatter constructs an unconfigured StmtFormatter defaulting to
// the sub-table bind shape; call Init before Format.
func NewStmtFormatter() *StmtFormatter { return &StmtFormatter{shape: BindShapeSubTable} }

// WithShape selects the parameterized-insert template shape. superTableName
// is required for BindShapeSuperTable and BindShapeAutoCreate.
func (f *StmtFormatter) WithShape(shape BindShape, superTableName string) *StmtFormatter {
	f.shape = shape
	f.superTableName = superTableName
	return f
}

// Init implements Formatter, returning the prepare SQL for the configured
// bind shape.
func (f *StmtFormatter) Init(columns, tags []model.ColumnConfig) (SinkContext, error) {
	f.columns = columns

	placeholders := make([]string, len(columns)+1) // +1 for timestamp
	for i := range placeholders {
		placeholders[i] = "?"
	}
	cols := strings.Join(placeholders, ",")

	var sql string
	switch f.shape {
	case BindShapeSubTable:
		sql = fmt.Sprintf("INSERT INTO ? VALUES(%s)", cols)
	case BindShapeSuperTable:
		if f.superTableName == "" {
			return SinkContext{}, errors.New("format: stmt formatter in super-table mode requires a super table name")
		}
		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = c.Name
		}
		sql = fmt.Sprintf("INSERT INTO `%s`(tbname,ts,%s) VALUES(?,%s)", f.superTableName, strings.Join(names, ","), cols)
	case BindShapeAutoCreate:
		if f.superTableName == "" {
			return SinkContext{}, errors.New("format: stmt formatter in auto-create mode requires a super table name")
		}
		tagPlaceholders := make([]string, len(tags))
		for i := range tagPlaceholders {
			tagPlaceholders[i] = "?"
		}
		sql = fmt.Sprintf("INSERT INTO ? USING `%s` TAGS(%s) VALUES(%s)", f.superTableName, strings.Join(tagPlaceholders, ","), cols)
	default:
		return SinkContext{}, errors.Errorf("format: unrecognized bind shape %d", f.shape)
	}
	return SinkContext{PrepareSQL: sql, BindShape: f.shape}, nil
}

// Format implements Formatter, returning the block's bind descriptors
// unchanged: the sink writer binds directly against the MemoryBlock's
// columnar buffers referenced by each descriptor.
func (f *StmtFormatter) Format(block *memtable.MemoryBlock, isRecovery bool) (FormatResult, error) {
	if block == nil || block.UsedTables() == 0 {
		return FormatResult{}, errors.New("format: stmt formatter given an empty block")
	}
	return FormatResult{Binds: block.BindDescriptors()}, nil
}
