package orchestrator

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/pipeline"
	"github.com/taosdata/taosgen-sub001/internal/sink"
)

// tagLookupSetter is implemented by formatters (kafka, mqtt) that need a
// per-table tag resolver supplied after construction, once the orchestrator's
// memory pool — the actual source of table tag values — exists.
type tagLookupSetter interface {
	SetTagLookup(func(tableName string) []model.Cell)
}

// consumerState is the per-consumer connection, formatter, and sink
// context a single consumer goroutine owns exclusively (spec §5 "Writer
// connections are strictly owned by one consumer").
type consumerState struct {
	writer    sink.Writer
	formatter format.Formatter
	sinkCtx   format.SinkContext
}

// startConsumer connects and prepares one consumer's writer and formatter;
// called from the startup latch phase so a connection failure can abort the
// whole run before any producer work is wasted (spec §4.10 step 6).
func (o *Orchestrator) startConsumer(ctx context.Context, consumerID int) (*consumerState, error) {
	pacer, err := pacing.New(o.cfg.Pacing, pacingPrecision(o.cfg.Generation.Precision))
	if err != nil {
		return nil, errors.Wrapf(err, "orchestrator: consumer %d pacing strategy", consumerID)
	}
	retry := sink.NewRetryPolicy(o.cfg.Retry, "consumer")
	writer := o.cfg.NewWriter(pacer, retry)

	if err := writer.Connect(ctx); err != nil {
		return nil, errors.Wrapf(err, "orchestrator: consumer %d connect", consumerID)
	}

	formatter, ok := o.cfg.Formatters.New(o.cfg.FormatType)
	if !ok {
		return nil, errors.Errorf("orchestrator: no formatter registered for format type %q", o.cfg.FormatType)
	}
	if tl, ok := formatter.(tagLookupSetter); ok {
		tl.SetTagLookup(o.pool.TableTags)
	}
	sinkCtx, err := formatter.Init(o.cfg.Schema.Columns, o.cfg.Schema.Tags)
	if err != nil {
		return nil, errors.Wrapf(err, "orchestrator: consumer %d formatter init", consumerID)
	}
	if err := writer.Prepare(ctx, sinkCtx); err != nil {
		return nil, errors.Wrapf(err, "orchestrator: consumer %d prepare", consumerID)
	}

	return &consumerState{writer: writer, formatter: formatter, sinkCtx: sinkCtx}, nil
}

// runConsumer drains blocks off the pipeline, formats and writes each one,
// notifies the checkpoint controller of progress, and hands the drained
// block to the garbage collector for release (spec §4.10 step 8, §4.9).
func (o *Orchestrator) runConsumer(ctx context.Context, consumerID int, cs *consumerState) error {
	for {
		res := o.pl.Fetch(consumerID)
		switch res.Status {
		case pipeline.StatusTerminated:
			return cs.writer.Close()
		case pipeline.StatusTimeout:
			continue
		}

		block := *res.Item
		if err := o.writeBlock(ctx, consumerID, cs, block); err != nil {
			o.log.Errorf("consumer %d: %v", consumerID, err)
		}
	}
}

func (o *Orchestrator) writeBlock(ctx context.Context, consumerID int, cs *consumerState, block *memtable.MemoryBlock) error {
	defer o.gc.Dispose(func() { o.pool.Release(block) })

	result, err := cs.formatter.Format(block, o.isRecovery.Load())
	if err != nil {
		return errors.Wrap(err, "formatting block")
	}

	env := sink.Envelope{
		Result:    result,
		StartTime: block.StartTime(),
		EndTime:   block.EndTime(),
		Block:     block,
		Columns:   o.cfg.Schema.Columns,
		Tags:      o.cfg.Schema.Tags,
	}
	if err := cs.writer.Write(ctx, env); err != nil {
		return errors.Wrap(err, "writing block")
	}

	o.notifyCheckpoint(block)
	return nil
}
