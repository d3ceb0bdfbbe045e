package memtable

import (
	"math"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// BindDescriptor is the bulk-bind descriptor for one table slot in a
// MemoryBlock: a set of pointers into the block's columnar buffers plus a
// row count, consumed directly by the statement formatter (spec §4.5,
// "Statement formatter (v2 only)") without any copying.
type BindDescriptor struct {
	TableName  string
	TableIndex int
	Timestamps []int64
	RowCount   int
}

// MemoryBlock is a pool-owned container of up to maxTables TableBlocks for
// one in-flight write (spec §3). It is exclusively owned by one producer,
// then handed to exactly one consumer, then released exactly once.
type MemoryBlock struct {
	pool *MemoryPool

	tables     []*TableBlock
	usedTables int

	startTime int64
	endTime   int64
	totalRows int

	inUse bool
}

func newMemoryBlock(pool *MemoryPool, maxTables int, schema []model.ColumnConfig, maxRowsPerTable int) *MemoryBlock {
	mb := &MemoryBlock{pool: pool, tables: make([]*TableBlock, maxTables)}
	for i := range mb.tables {
		mb.tables[i] = newTableBlock(schema, maxRowsPerTable)
	}
	mb.resetAggregates()
	return mb
}

func (mb *MemoryBlock) resetAggregates() {
	mb.usedTables = 0
	mb.totalRows = 0
	mb.startTime = math.MaxInt64
	mb.endTime = math.MinInt64
}

// UsedTables returns the number of TableBlock slots filled so far.
func (mb *MemoryBlock) UsedTables() int { return mb.usedTables }

// TotalRows returns the sum of used rows across all filled TableBlocks.
func (mb *MemoryBlock) TotalRows() int { return mb.totalRows }

// StartTime returns the minimum row timestamp in this block.
func (mb *MemoryBlock) StartTime() int64 { return mb.startTime }

// EndTime returns the maximum row timestamp in this block.
func (mb *MemoryBlock) EndTime() int64 { return mb.endTime }

// Table returns the i-th used TableBlock.
func (mb *MemoryBlock) Table(i int) *TableBlock { return mb.tables[i] }

// TagsFor returns the tag cells registered for tableName in the owning
// pool's tag registry, or nil if none were registered.
func (mb *MemoryBlock) TagsFor(tableName string) []model.Cell { return mb.pool.TableTags(tableName) }

// BindDescriptors builds the bulk-bind descriptor array over the currently
// used tables, pointing directly into each TableBlock's timestamp buffer.
func (mb *MemoryBlock) BindDescriptors() []BindDescriptor {
	out := make([]BindDescriptor, mb.usedTables)
	for i := 0; i < mb.usedTables; i++ {
		tb := mb.tables[i]
		out[i] = BindDescriptor{
			TableName:  tb.TableName(),
			TableIndex: i,
			Timestamps: tb.timestamps[:tb.usedRows],
			RowCount:   tb.usedRows,
		}
	}
	return out
}

// nextFreeTable returns the next unused TableBlock slot, bound to
// tableName, and advances usedTables. It returns nil if the block's table
// capacity is exhausted.
func (mb *MemoryBlock) nextFreeTable(tableName string) *TableBlock {
	if mb.usedTables >= len(mb.tables) {
		return nil
	}
	tb := mb.tables[mb.usedTables]
	tb.bindTo(tableName)
	mb.usedTables++
	return tb
}

func (mb *MemoryBlock) observeTimestamp(ts int64) {
	if ts < mb.startTime {
		mb.startTime = ts
	}
	if ts > mb.endTime {
		mb.endTime = ts
	}
}

func (mb *MemoryBlock) addRows(ts int64) { mb.totalRows++ ; mb.observeTimestamp(ts) }

func (mb *MemoryBlock) reset() {
	for i := 0; i < mb.usedTables; i++ {
		mb.tables[i].reset()
	}
	mb.resetAggregates()
	mb.inUse = false
}
