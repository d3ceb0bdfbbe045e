package orchestrator

import (
	"context"
	"hash/fnv"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/rowgen"
)

// tableGen pairs one table's RowDataGenerator with its name, so a producer
// can drop exhausted tables from its active interlacing set without losing
// track of which generator produced which name.
type tableGen struct {
	name string
	gen  *rowgen.RowDataGenerator
}

// runProducer drives one producer goroutine: it owns tableNames exclusively
// (spec §4.10 step 1 "partition the names across P producers"), builds one
// RowDataGenerator per table, and repeatedly packs generated rows into
// MemoryBlocks handed off through the pipeline (spec §4.10 step 4).
func (o *Orchestrator) runProducer(ctx context.Context, producerID int, tableNames []string) error {
	seedRng := rand.New(rand.NewSource(uint64(producerID) + 1))

	for start := 0; start < len(tableNames); start += o.cfg.Dispatch.MaxTablesPerBlock {
		end := start + o.cfg.Dispatch.MaxTablesPerBlock
		if end > len(tableNames) {
			end = len(tableNames)
		}
		group, err := o.buildTableGroup(tableNames[start:end], seedRng)
		if err != nil {
			return err
		}
		if o.cfg.Generation.InterlaceRows > 0 {
			if err := o.runInterlacedGroup(ctx, producerID, group); err != nil {
				return err
			}
		} else {
			if err := o.runSequentialGroup(ctx, producerID, group); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) buildTableGroup(names []string, seedRng *rand.Rand) ([]tableGen, error) {
	group := make([]tableGen, len(names))
	for i, name := range names {
		ts, err := rowgen.NewTimestampGenerator(o.cfg.Generation.StartTimestamp, o.cfg.Generation.Step, o.cfg.Generation.Precision)
		if err != nil {
			return nil, errors.Wrapf(err, "orchestrator: building timestamp generator for table %q", name)
		}
		rg, err := rowgen.NewRowGeneratorFromSchema(ts, o.cfg.Schema.Columns, rand.New(rand.NewSource(seedRng.Uint64())))
		if err != nil {
			return nil, errors.Wrapf(err, "orchestrator: building row generator for table %q", name)
		}
		disorderRng := rand.New(rand.NewSource(seedRng.Uint64()))
		gen := rowgen.NewRowDataGenerator(name, o.cfg.Generation.RowsPerTable, rg, o.cfg.Generation.Disorder, disorderRng)
		group[i] = tableGen{name: name, gen: gen}

		if tags, err := o.tagCellsFor(name); err != nil {
			return nil, err
		} else if tags != nil {
			o.pool.RegisterTableTags(name, tags)
		}
	}
	return group, nil
}

// tagCellsFor evaluates the configured tag schema's generators once per
// table to produce that table's fixed tag values (tags are constant across
// a table's whole row stream, unlike columns).
func (o *Orchestrator) tagCellsFor(tableName string) ([]model.Cell, error) {
	if len(o.cfg.Schema.Tags) == 0 {
		return nil, nil
	}
	cells := make([]model.Cell, len(o.cfg.Schema.Tags))
	rng := rand.New(rand.NewSource(tableNameSeed(tableName)))
	for i, tagCfg := range o.cfg.Schema.Tags {
		gen, err := rowgen.NewColumnGenerator(tagCfg, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "orchestrator: building tag generator for %q", tagCfg.Name)
		}
		cell, err := gen.GenerateOne()
		if err != nil {
			return nil, errors.Wrapf(err, "orchestrator: generating tag %q for table %q", tagCfg.Name, tableName)
		}
		cells[i] = cell
	}
	return cells, nil
}

// runInterlacedGroup round-robins interlaceRows rows per table per tick
// across every table in group until all are exhausted, so one MemoryBlock
// can carry a slice of many tables at once (spec §4.10, the "interlace.rows"
// dispatch parameter).
func (o *Orchestrator) runInterlacedGroup(ctx context.Context, producerID int, group []tableGen) error {
	active := group
	for len(active) > 0 {
		if o.shuttingDown(ctx) {
			return nil
		}

		mb := &memtable.MultiBatch{}
		next := active[:0]
		for _, tg := range active {
			rows, done, err := o.drainRows(tg.gen, o.cfg.Generation.InterlaceRows)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				mb.Tables = append(mb.Tables, memtable.TableRows{TableName: tg.name, Rows: rows})
			}
			if !done {
				next = append(next, tg)
			}
		}
		active = next

		if err := o.packAndPush(producerID, mb); err != nil {
			return err
		}
	}
	return nil
}

// runSequentialGroup fully drains one table before moving to the next
// (spec §6 "interlace.rows=0" default), producing single-table blocks.
func (o *Orchestrator) runSequentialGroup(ctx context.Context, producerID int, group []tableGen) error {
	for _, tg := range group {
		for tg.gen.HasMore() {
			if o.shuttingDown(ctx) {
				return nil
			}
			rows, _, err := o.drainRows(tg.gen, sequentialBatchRows)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				continue
			}
			mb := &memtable.MultiBatch{Tables: []memtable.TableRows{{TableName: tg.name, Rows: rows}}}
			if err := o.packAndPush(producerID, mb); err != nil {
				return err
			}
		}
	}
	return nil
}

// drainRows pulls up to n rows from gen, looping past StatusSkip ticks
// (rows diverted into the disorder queue yield nothing that tick, per spec
// §4.3) until n rows are collected or the table is exhausted. done reports
// exhaustion; rows still in the disorder queue at that point are flushed
// into the generator's cache and are not returned.
func (o *Orchestrator) drainRows(gen *rowgen.RowDataGenerator, n int) (rows []model.Row, done bool, err error) {
	for len(rows) < n {
		row, status, gerr := gen.Next()
		if gerr != nil {
			return nil, false, gerr
		}
		switch status {
		case rowgen.StatusRow:
			rows = append(rows, row)
		case rowgen.StatusSkip:
			continue
		case rowgen.StatusDone:
			gen.Flush()
			return rows, true, nil
		}
	}
	return rows, !gen.HasMore(), nil
}

// tableNameSeed derives a deterministic PRNG seed from tableName so every
// table's fixed tag values are reproducible across runs without every table
// drawing from the same seed.
func tableNameSeed(tableName string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tableName))
	return h.Sum64()
}

func (o *Orchestrator) packAndPush(producerID int, mb *memtable.MultiBatch) error {
	block, err := o.pool.ConvertToMemoryBlock(mb)
	if err != nil {
		return errors.Wrap(err, "orchestrator: packing memory block")
	}
	if block == nil {
		return nil
	}
	if err := o.pipelinePush(producerID, block); err != nil {
		return errors.Wrap(err, "orchestrator: pushing block to pipeline")
	}
	return nil
}
