package orchestrator

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/taosdata/taosgen-sub001/internal/checkpoint"
	"github.com/taosdata/taosgen-sub001/internal/gcworker"
	"github.com/taosdata/taosgen-sub001/internal/logutil"
	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/pipeline"
	"github.com/taosdata/taosgen-sub001/internal/rowgen"
	"github.com/taosdata/taosgen-sub001/internal/sink"
)

// warmupPollInterval bounds how often the startup warm-up gate re-checks
// the shared queue's occupancy while waiting for it to reach
// DispatchConfig.QueueWarmupRatio (spec §4.10 step 5).
const warmupPollInterval = 20 * time.Millisecond

// sequentialBatchRows bounds how many rows a sequential (non-interlaced)
// producer packs into one MemoryBlock at a time, and sizes the pool's
// per-table buffer capacity when interlacing is disabled.
const sequentialBatchRows = 256

// Summary is the run's final report (spec §4.10 step 8 "aggregate per-writer
// metrics; print the summary").
type Summary struct {
	TotalRows     int64
	TablesWritten int
	Elapsed       time.Duration
	PlayLatency   []sink.LatencyStats
	WriteLatency  []sink.LatencyStats
	Interrupted   bool
}

// Orchestrator wires the memory pool, producers, consumers, checkpoint
// controller, and garbage collector together for one insert job (spec
// §4.10, §5).
type Orchestrator struct {
	cfg Config
	log *logutil.Logger

	pool *memtable.MemoryPool
	pl   *pipeline.DataPipeline[*memtable.MemoryBlock]
	gc   *gcworker.Pool
	ckpt *checkpoint.Controller

	isRecovery atomic.Bool

	writeCountsMu sync.Mutex
	writeCounts   map[string]int64
}

// New validates cfg and constructs an Orchestrator ready to Run. It does not
// allocate the memory pool or spawn any goroutines; that happens in Run so a
// caller can construct many Orchestrators cheaply (e.g. in tests) without
// paying for pool pre-allocation until actually running.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Dispatch.ProducerCount < 1 {
		return nil, errors.New("orchestrator: producer_count must be at least 1")
	}
	if cfg.Dispatch.ConsumerCount < 1 {
		return nil, errors.New("orchestrator: consumer_count must be at least 1")
	}
	if cfg.NewWriter == nil {
		return nil, errors.New("orchestrator: NewWriter factory is required")
	}
	return &Orchestrator{
		cfg:         cfg,
		log:         logutil.New("orchestrator"),
		writeCounts: make(map[string]int64),
	}, nil
}

// Run executes spec §4.10's eight-step sequence end to end.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	names := o.cfg.Naming.Names() // step 1
	rowsPerTable := o.cfg.Generation.RowsPerTable
	startTimestamp := o.cfg.Generation.StartTimestamp

	if o.cfg.Checkpoint.Enabled {
		path := o.cfg.Checkpoint.FilePath
		if checkpoint.Exists(path) {
			result, err := checkpoint.Recover(path, startTimestamp, o.cfg.Generation.Step, rowsPerTable)
			if err != nil {
				return Summary{}, errors.Wrap(err, "orchestrator: recovering checkpoint")
			}
			if result.Recovered {
				o.isRecovery.Store(true)
				if result.Done {
					o.log.Infof("checkpoint already satisfies configured row budget; nothing to do")
					return Summary{Elapsed: time.Since(start)}, nil
				}
				startTimestamp = result.StartTimestamp
				rowsPerTable = result.RowsPerTable
				o.log.Infof("resuming from checkpoint: start_timestamp=%d rows_per_table=%d", startTimestamp, rowsPerTable)
			}
		}
	}
	o.cfg.Generation.StartTimestamp = startTimestamp
	o.cfg.Generation.RowsPerTable = rowsPerTable

	tableBlockCapacity := sequentialBatchRows
	if o.cfg.Generation.InterlaceRows > 0 {
		tableBlockCapacity = o.cfg.Generation.InterlaceRows
	}
	o.pool = memtable.NewMemoryPool( // step 2
		o.cfg.Dispatch.BlockCount,
		o.cfg.Dispatch.MaxTablesPerBlock,
		int(minInt64(rowsPerTable, int64(tableBlockCapacity))),
		o.cfg.Schema.Columns,
		o.cfg.Schema.Tags,
		o.cfg.Generation.ReuseDataAcrossTables,
		o.cfg.Generation.CacheUnits,
	)
	defer o.pool.Terminate()

	if o.cfg.Generation.CacheUnits > 0 {
		o.log.Infof("cache_units=%d configured; pool pre-allocation already serves this role, no separate fill pass needed", o.cfg.Generation.CacheUnits)
	}

	if o.cfg.Dispatch.SharedQueue {
		o.pl = pipeline.NewShared[*memtable.MemoryBlock](o.cfg.Dispatch.QueueCapacity, o.cfg.Dispatch.ConsumerCount)
	} else {
		o.pl = pipeline.NewPerProducer[*memtable.MemoryBlock](o.cfg.Dispatch.ProducerCount, o.cfg.Dispatch.QueueCapacity, o.cfg.Dispatch.ConsumerCount)
	}

	gcWorkers := o.cfg.GCWorkers
	if gcWorkers < 1 {
		gcWorkers = int(math.Ceil(float64(o.cfg.Dispatch.ConsumerCount) / 10))
		if gcWorkers < 1 {
			gcWorkers = 1
		}
	}
	gc, err := gcworker.New(gcWorkers, o.cfg.Dispatch.QueueCapacity)
	if err != nil {
		return Summary{}, errors.Wrap(err, "orchestrator: building GC pool")
	}
	o.gc = gc
	defer o.gc.Terminate()

	o.ckpt = checkpoint.New(o.cfg.Checkpoint)
	o.ckpt.Start(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	partitions := partitionNames(names, o.cfg.Dispatch.ProducerCount)

	var producerWG sync.WaitGroup
	producerErrs := make(chan error, len(partitions))
	for i, part := range partitions { // step 4
		if len(part) == 0 {
			continue
		}
		producerWG.Add(1)
		go func(id int, tableNames []string) {
			defer producerWG.Done()
			if err := o.runProducer(runCtx, id, tableNames); err != nil {
				producerErrs <- errors.Wrapf(err, "producer %d", id)
				cancel()
			}
		}(i, part)
	}

	if err := o.waitForWarmup(runCtx); err != nil { // step 5
		cancel()
		o.pl.Terminate() // unblocks any producer stuck in Push before we wait on it
		producerWG.Wait()
		return Summary{}, err
	}

	consumerStates := make([]*consumerState, o.cfg.Dispatch.ConsumerCount)
	group, gctx := errgroup.WithContext(runCtx) // step 6: startup latch
	for i := 0; i < o.cfg.Dispatch.ConsumerCount; i++ {
		i := i
		group.Go(func() error {
			cs, err := o.startConsumer(gctx, i)
			if err != nil {
				return err
			}
			consumerStates[i] = cs
			return nil
		})
	}
	if err := group.Wait(); err != nil { // spec §4.10 step 6: "a startup failure interrupts the latch and aborts execution"
		cancel()
		o.pl.Terminate()
		producerWG.Wait()
		for _, cs := range consumerStates {
			if cs != nil {
				_ = cs.writer.Close()
			}
		}
		return Summary{}, errors.Wrap(err, "orchestrator: consumer startup latch")
	}

	monitorCtx, stopMonitor := context.WithCancel(runCtx)
	var monitorWG sync.WaitGroup
	monitorWG.Add(1)
	go func() {
		defer monitorWG.Done()
		o.runMonitor(monitorCtx) // step 7
	}()

	var consumerWG sync.WaitGroup
	for i := 0; i < o.cfg.Dispatch.ConsumerCount; i++ {
		consumerWG.Add(1)
		go func(id int, cs *consumerState) {
			defer consumerWG.Done()
			if err := o.runConsumer(runCtx, id, cs); err != nil {
				o.log.Errorf("consumer %d exited with error: %v", id, err)
			}
		}(i, consumerStates[i])
	}

	producerWG.Wait() // step 8: producers drained
	o.pl.Terminate()
	consumerWG.Wait()
	o.gc.Terminate()
	stopMonitor()
	monitorWG.Wait()

	interrupted := ctx.Err() != nil
	o.ckpt.StopAll(interrupted)

	close(producerErrs)
	var firstErr error
	for err := range producerErrs {
		if firstErr == nil {
			firstErr = err
		}
		o.log.Errorf("%v", err)
	}

	summary := o.buildSummary(consumerStates, start, interrupted)
	return summary, firstErr
}

// waitForWarmup blocks until the pipeline's shared queue reaches
// QueueWarmupRatio full, or the ratio is non-positive (warm-up disabled).
func (o *Orchestrator) waitForWarmup(ctx context.Context) error {
	ratio := o.cfg.Dispatch.QueueWarmupRatio
	if ratio <= 0 {
		return nil
	}
	target := int64(float64(o.cfg.Dispatch.QueueCapacity) * ratio)
	if target <= 0 {
		return nil
	}
	ticker := time.NewTicker(warmupPollInterval)
	defer ticker.Stop()
	for {
		if o.pl.TotalQueued() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pipelinePush routes a producer's filled block to the pipeline, respecting
// shutdown so a blocked Push cannot outlive a cancelled run.
func (o *Orchestrator) pipelinePush(producerID int, block *memtable.MemoryBlock) error {
	return o.pl.Push(producerID, block)
}

// shuttingDown reports whether ctx has been cancelled, checked at every
// producer loop head (spec §5 "stop_execution flag observed at every loop
// head").
func (o *Orchestrator) shuttingDown(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// notifyCheckpoint folds block's per-table row counts into the running
// write-count tally (kept regardless of checkpointing, since the final
// summary reports total rows written) and, when checkpointing is enabled,
// forwards the updated progress to the checkpoint controller (spec §4.8
// "Writers notify the controller after each successful write").
func (o *Orchestrator) notifyCheckpoint(block *memtable.MemoryBlock) {
	var updates []checkpoint.Data
	if o.cfg.Checkpoint.Enabled {
		updates = make([]checkpoint.Data, 0, block.UsedTables())
	}

	o.writeCountsMu.Lock()
	for i := 0; i < block.UsedTables(); i++ {
		tb := block.Table(i)
		rows := tb.UsedRows()
		if rows == 0 {
			continue
		}
		name := tb.TableName()
		o.writeCounts[name] += int64(rows)
		if o.cfg.Checkpoint.Enabled {
			updates = append(updates, checkpoint.Data{
				TableName:          name,
				LastCheckpointTime: tb.Timestamp(rows - 1),
				WriteCount:         o.writeCounts[name],
			})
		}
	}
	o.writeCountsMu.Unlock()

	if o.cfg.Checkpoint.Enabled {
		o.ckpt.Notify(updates)
	}
}

func (o *Orchestrator) buildSummary(consumers []*consumerState, start time.Time, interrupted bool) Summary {
	s := Summary{Elapsed: time.Since(start), Interrupted: interrupted}
	o.writeCountsMu.Lock()
	for _, n := range o.writeCounts {
		s.TotalRows += n
	}
	s.TablesWritten = len(o.writeCounts)
	o.writeCountsMu.Unlock()

	for _, cs := range consumers {
		if cs == nil {
			continue
		}
		s.PlayLatency = append(s.PlayLatency, cs.writer.PlayMetrics())
		s.WriteLatency = append(s.WriteLatency, cs.writer.WriteMetrics())
	}
	return s
}

// partitionNames splits names into n contiguous, roughly equal chunks (spec
// §4.10 step 1 "index_range"; other partitioning strategies fail closed).
func partitionNames(names []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	parts := make([][]string, n)
	base := len(names) / n
	rem := len(names) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		parts[i] = names[idx : idx+size]
		idx += size
	}
	return parts
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// pacingPrecision maps a row generator's timestamp precision onto the unit
// the pacing strategy expects; both enumerate the same three precisions, so
// this is a total, infallible conversion.
func pacingPrecision(p rowgen.Precision) pacing.Precision {
	switch p {
	case rowgen.PrecisionMicros:
		return pacing.PrecisionMicros
	case rowgen.PrecisionNanos:
		return pacing.PrecisionNanos
	default:
		return pacing.PrecisionMillis
	}
}
