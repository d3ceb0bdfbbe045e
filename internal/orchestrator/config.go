// Package orchestrator wires together the memory pool, row generators,
// formatters, sink writers, pacing, checkpointing, and garbage collector
// into one insert job, following the execution sequence and concurrency
// model of spec §4.10/§5 (grounded on original_source's InsertAction /
// ActionBase orchestration).
package orchestrator

import (
	"strconv"

	"github.com/taosdata/taosgen-sub001/internal/checkpoint"
	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/rowgen"
	"github.com/taosdata/taosgen-sub001/internal/sink"
)

// SchemaConfig names the super table and its column/tag layout.
type SchemaConfig struct {
	SuperTableName string
	Database       string
	Columns        []model.ColumnConfig
	Tags           []model.ColumnConfig
}

// TableNaming selects how child table names are produced: either an
// explicit list (e.g. read from a CSV), or a generated `Prefix<i>` series.
type TableNaming struct {
	Explicit []string
	Prefix   string
	Count    int
}

// Names returns the full ordered list of child table names.
func (n TableNaming) Names() []string {
	if len(n.Explicit) > 0 {
		return n.Explicit
	}
	names := make([]string, n.Count)
	for i := range names {
		names[i] = n.Prefix + strconv.Itoa(i)
	}
	return names
}

// GenerationConfig configures per-table row production (spec §6
// "Generation").
type GenerationConfig struct {
	RowsPerTable          int64
	InterlaceRows         int // 0 disables interlacing: one table is fully drained before the next
	StartTimestamp        int64
	Step                  int64
	Precision             rowgen.Precision
	Disorder              []rowgen.DisorderWindow
	ReuseDataAcrossTables bool
	CacheUnits            int
}

// DispatchConfig configures the producer/consumer/queue topology (spec §6
// "Dispatch").
type DispatchConfig struct {
	ProducerCount     int
	ConsumerCount     int
	QueueCapacity     int
	QueueWarmupRatio  float64
	SharedQueue       bool
	MaxTablesPerBlock int
	BlockCount        int
}

// WriterFactory constructs one Writer per consumer; called once per
// consumer goroutine so each owns an independent sink connection (spec §5
// "Writer connections are strictly owned by one consumer").
type WriterFactory func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer

// Config bundles everything Run needs for one insert job.
type Config struct {
	Schema     SchemaConfig
	Naming     TableNaming
	Generation GenerationConfig
	Dispatch   DispatchConfig

	FormatType format.FormatType
	Formatters *format.Registry

	Pacing     pacing.Config
	Retry      sink.RetryConfig
	Checkpoint checkpoint.Config

	NewWriter WriterFactory

	// GCWorkers sizes the garbage collector pool; spec §5 recommends
	// ceil(ConsumerCount/10).
	GCWorkers int
}
