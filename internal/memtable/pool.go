package memtable

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// acquireTimeout bounds how long Acquire blocks waiting for a free block
// before giving the caller a chance to observe shutdown (spec §4.1
// "blocking up to an implementation-defined timeout").
const acquireTimeout = 500 * time.Millisecond

// MultiBatch is a heap-local, per-table collection of generated rows handed
// to ConvertToMemoryBlock for packing into a pool-owned MemoryBlock.
type MultiBatch struct {
	Tables []TableRows
}

// TableRows is one table's worth of freshly generated rows.
type TableRows struct {
	TableName string
	Rows      []model.Row
}

// MemoryPool pre-allocates blockCount MemoryBlocks (and all their nested
// TableBlocks) up front and hands them out through a bounded lock-free
// free-list, so no allocation happens on the producer/consumer hot path
// (spec §4.1).
type MemoryPool struct {
	columnSchema []model.ColumnConfig
	tagSchema    []model.ColumnConfig

	maxTablesPerBlock int
	maxRowsPerTable   int
	reuseDataAcrossTables bool

	free chan *MemoryBlock

	tagsMu sync.RWMutex
	tags   map[string][]model.Cell

	terminated chan struct{}
	closeOnce  sync.Once

	cacheUnits int
}

// NewMemoryPool constructs a pool with blockCount pre-allocated blocks, each
// able to hold up to maxTablesPerBlock tables of up to maxRowsPerTable rows,
// shaped by columnSchema (row columns) and tagSchema (per-table tags).
func NewMemoryPool(
	blockCount, maxTablesPerBlock, maxRowsPerTable int,
	columnSchema, tagSchema []model.ColumnConfig,
	reuseDataAcrossTables bool,
	cacheUnits int,
) *MemoryPool {
	p := &MemoryPool{
		columnSchema:          columnSchema,
		tagSchema:             tagSchema,
		maxTablesPerBlock:     maxTablesPerBlock,
		maxRowsPerTable:       maxRowsPerTable,
		reuseDataAcrossTables: reuseDataAcrossTables,
		free:                  make(chan *MemoryBlock, blockCount),
		tags:                  make(map[string][]model.Cell),
		terminated:            make(chan struct{}),
		cacheUnits:            cacheUnits,
	}
	for i := 0; i < blockCount; i++ {
		p.free <- newMemoryBlock(p, maxTablesPerBlock, columnSchema, maxRowsPerTable)
	}
	return p
}

// sentinelBlock is returned by Acquire once the pool has been terminated.
var sentinelBlock = &MemoryBlock{}

// Acquire dequeues one free block, blocking up to acquireTimeout at a time
// and retrying until one is available or the pool is terminated, in which
// case it returns the sentinel block and ok=false.
func (p *MemoryPool) Acquire() (*MemoryBlock, bool) {
	for {
		select {
		case b := <-p.free:
			b.inUse = true
			return b, true
		case <-p.terminated:
			return sentinelBlock, false
		case <-time.After(acquireTimeout):
			select {
			case <-p.terminated:
				return sentinelBlock, false
			default:
				continue
			}
		}
	}
}

// Release resets b to its just-acquired state and returns it to the
// free-list. Release is idempotent: releasing an already-released (or
// sentinel) block is a no-op, which lets both the envelope's own cleanup
// path and a defensive caller both call Release without double-enqueuing.
func (p *MemoryPool) Release(b *MemoryBlock) {
	if b == nil || b == sentinelBlock || !b.inUse {
		return
	}
	b.reset()
	select {
	case p.free <- b:
	default:
		// Free-list is at capacity; this can only happen if a block was
		// released twice through different paths racing each other, which
		// reset's inUse guard above should already have prevented.
	}
}

// Terminate unblocks every Acquire call currently waiting, causing them to
// return the sentinel block. Safe to call more than once.
func (p *MemoryPool) Terminate() {
	p.closeOnce.Do(func() { close(p.terminated) })
}

// ConvertToMemoryBlock acquires a block and packs mb's rows into it, column
// by column within each table for cache locality. It returns nil if mb is
// empty (no tables, or every table has zero rows).
func (p *MemoryPool) ConvertToMemoryBlock(mb *MultiBatch) (*MemoryBlock, error) {
	nonEmpty := 0
	for _, t := range mb.Tables {
		if len(t.Rows) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, nil
	}

	block, ok := p.Acquire()
	if !ok {
		return nil, errors.New("memtable: pool terminated while acquiring a block")
	}

	for _, t := range mb.Tables {
		if len(t.Rows) == 0 {
			continue
		}
		tb := block.nextFreeTable(t.TableName)
		if tb == nil {
			p.Release(block)
			return nil, errors.Errorf("memtable: block has no free table slots (max_tables=%d)", p.maxTablesPerBlock)
		}
		if err := tb.AddRowsBulk(t.Rows); err != nil {
			p.Release(block)
			return nil, err
		}
		for _, r := range t.Rows {
			block.addRows(r.Timestamp)
		}
	}
	return block, nil
}

// RegisterTableTags stores tagCells for tableName so TableBlocks (and
// formatters reading from them) can look tag values up by table name
// without each block copying its own tag snapshot.
func (p *MemoryPool) RegisterTableTags(tableName string, tagCells []model.Cell) {
	p.tagsMu.Lock()
	defer p.tagsMu.Unlock()
	p.tags[tableName] = tagCells
}

// TableTags returns the previously registered tag cells for tableName, or
// nil if none were registered.
func (p *MemoryPool) TableTags(tableName string) []model.Cell {
	p.tagsMu.RLock()
	defer p.tagsMu.RUnlock()
	return p.tags[tableName]
}

// ColumnSchema returns the row-column schema the pool was constructed with.
func (p *MemoryPool) ColumnSchema() []model.ColumnConfig { return p.columnSchema }

// TagSchema returns the tag schema the pool was constructed with.
func (p *MemoryPool) TagSchema() []model.ColumnConfig { return p.tagSchema }

// CacheUnits returns the configured number of pre-materialized synthetic
// batches per table slot (spec §4.1 "Cache units"), or 0 if disabled.
func (p *MemoryPool) CacheUnits() int { return p.cacheUnits }
