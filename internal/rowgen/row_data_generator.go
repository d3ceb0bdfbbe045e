package rowgen

import (
	"container/heap"

	"golang.org/x/exp/rand"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// NextStatus reports what RowDataGenerator.Next produced.
type NextStatus int

const (
	// StatusRow means Next returned a usable row.
	StatusRow NextStatus = iota
	// StatusSkip means the row due this tick was diverted into the disorder
	// queue; the caller should try again on its next tick (spec §4.3: "the
	// caller gets no row this tick").
	StatusSkip
	// StatusDone means the table has produced all of its configured rows.
	StatusDone
)

// RowDataGenerator drives a single table's row production: it serves rows
// released from the disorder queue first, otherwise the generator chain or a
// CSV row source, and applies the out-of-order injection policy to each
// freshly produced row (spec §4.3 "Row production & disorder"). There is no
// pre-filled row cache.
type RowDataGenerator struct {
	tableName string
	totalRows int64
	generated int64

	rowGen *RowGenerator

	csvRows  []model.Row
	csvIndex int
	useCSV   bool

	disorder         []DisorderWindow
	disorderRng      *rand.Rand
	delayQueue       pendingQueue
	currentTimestamp int64

	// cache holds rows released from the disorder queue (and, after Flush,
	// every row that was still pending); consumed LIFO to match the
	// teacher's stack-backed cache.
	cache []model.Row
}

// NewRowDataGenerator builds a generator producing up to totalRows rows for
// tableName from rowGen, with the given disorder windows (nil/empty
// disables out-of-order injection).
func NewRowDataGenerator(
	tableName string, totalRows int64, rowGen *RowGenerator, disorder []DisorderWindow, disorderRng *rand.Rand,
) *RowDataGenerator {
	g := &RowDataGenerator{
		tableName:   tableName,
		totalRows:   totalRows,
		rowGen:      rowGen,
		disorder:    disorder,
		disorderRng: disorderRng,
	}
	heap.Init(&g.delayQueue)
	return g
}

// NewCSVRowDataGenerator builds a generator that replays rows pre-loaded
// from a CSV source instead of the generator chain (spec §4.3 supplement,
// grounded on original_source's ColumnsCSVReader-backed fallback).
func NewCSVRowDataGenerator(
	tableName string, totalRows int64, rows []model.Row, disorder []DisorderWindow, disorderRng *rand.Rand,
) *RowDataGenerator {
	g := &RowDataGenerator{
		tableName:   tableName,
		totalRows:   totalRows,
		csvRows:     rows,
		useCSV:      true,
		disorder:    disorder,
		disorderRng: disorderRng,
	}
	heap.Init(&g.delayQueue)
	return g
}

// HasMore reports whether the generator has not yet produced all of its
// configured rows.
func (g *RowDataGenerator) HasMore() bool { return g.generated < g.totalRows }

// Next produces the table's next row, or reports that this tick yielded
// nothing (diverted to disorder) or that the table is exhausted.
func (g *RowDataGenerator) Next() (model.Row, NextStatus, error) {
	if g.generated >= g.totalRows {
		return model.Row{}, StatusDone, nil
	}

	g.releaseDue()

	if len(g.cache) > 0 {
		row := g.cache[len(g.cache)-1]
		g.cache = g.cache[:len(g.cache)-1]
		g.generated++
		return row, StatusRow, nil
	}

	row, err := g.fetchRaw()
	if err != nil {
		return model.Row{}, StatusDone, err
	}
	g.currentTimestamp = row.Timestamp

	if g.delay(row) {
		return model.Row{}, StatusSkip, nil
	}

	g.generated++
	return row, StatusRow, nil
}

func (g *RowDataGenerator) fetchRaw() (model.Row, error) {
	if g.useCSV {
		row := g.csvRows[g.csvIndex]
		g.csvIndex = (g.csvIndex + 1) % len(g.csvRows)
		return row, nil
	}
	return g.rowGen.GenerateRow()
}

// delay checks row's timestamp against every configured disorder window
// and, with that window's probability, enqueues it for later delivery
// instead of returning it this tick (spec §4.3).
func (g *RowDataGenerator) delay(row model.Row) bool {
	for _, w := range g.disorder {
		if !w.contains(row.Timestamp) {
			continue
		}
		if g.disorderRng.Float64() >= w.Ratio {
			continue
		}
		latency := int64(0)
		if w.LatencyHigh > 0 {
			latency = g.disorderRng.Int63n(w.LatencyHigh)
		}
		heap.Push(&g.delayQueue, &pendingRow{row: row, deliverAt: row.Timestamp + latency})
		return true
	}
	return false
}

// releaseDue moves every pending row whose deliver-timestamp has arrived
// into the cache, ahead of fetching a fresh row (spec §4.3: "rows whose
// deliver-timestamp <= the current row's timestamp are released... before
// fetching fresh rows").
func (g *RowDataGenerator) releaseDue() {
	for g.delayQueue.Len() > 0 && g.delayQueue[0].deliverAt <= g.currentTimestamp {
		pr := heap.Pop(&g.delayQueue).(*pendingRow)
		g.cache = append(g.cache, pr.row)
	}
}

// Flush drains every row still held in the disorder queue into the cache,
// regardless of deliver-timestamp. Next reports StatusDone as soon as
// totalRows rows have been delivered, without serving the cache, so rows
// flushed at end of run are not returned.
func (g *RowDataGenerator) Flush() {
	for g.delayQueue.Len() > 0 {
		pr := heap.Pop(&g.delayQueue).(*pendingRow)
		g.cache = append(g.cache, pr.row)
	}
}

// Reset rewinds generated-row count, CSV replay position, and the
// underlying row generator's timestamp/order state.
func (g *RowDataGenerator) Reset() {
	g.generated = 0
	g.csvIndex = 0
	g.cache = g.cache[:0]
	if g.rowGen != nil {
		g.rowGen.Reset()
	}
}
