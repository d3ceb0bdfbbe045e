package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/taosdata/taosgen-sub001/internal/checkpoint"
	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/rowgen"
	"github.com/taosdata/taosgen-sub001/internal/sink"
)

var errConnectFailed = errors.New("connect failed")

// recordingWriter is a test double satisfying sink.Writer that just counts
// rows and blocks, so tests can assert on the orchestrator's wiring without
// touching a real network sink.
type recordingWriter struct {
	mu         sync.Mutex
	writes     int
	totalRows  int64
	connectErr error
	closed     bool
}

func (w *recordingWriter) Connect(ctx context.Context) error { return w.connectErr }
func (w *recordingWriter) Prepare(ctx context.Context, sinkCtx format.SinkContext) error {
	return nil
}
func (w *recordingWriter) Write(ctx context.Context, env sink.Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.totalRows += int64(env.Block.TotalRows())
	return nil
}
func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
func (w *recordingWriter) PlayMetrics() sink.LatencyStats  { return sink.LatencyStats{} }
func (w *recordingWriter) WriteMetrics() sink.LatencyStats { return sink.LatencyStats{} }

func testSchema() ([]model.ColumnConfig, []model.ColumnConfig) {
	columns := []model.ColumnConfig{
		{Name: "value", Type: model.TagDouble, Generator: model.GenRandom, Min: 0, Max: 100},
	}
	tags := []model.ColumnConfig{
		{Name: "group_id", Type: model.TagInt32, Generator: model.GenOrder, OrderMin: 0, OrderMax: 1000},
	}
	return columns, tags
}

func testConfig(t *testing.T, tableCount int, rowsPerTable int64) (Config, *recordingWriter) {
	t.Helper()
	columns, tags := testSchema()
	writer := &recordingWriter{}

	reg := format.NewRegistry()
	reg.Register(format.FormatSQL, func() format.Formatter { return format.NewSQLFormatter().WithDatabase("bench") })

	return Config{
		Schema: SchemaConfig{
			SuperTableName: "meters",
			Database:       "bench",
			Columns:        columns,
			Tags:           tags,
		},
		Naming: TableNaming{Prefix: "d", Count: tableCount},
		Generation: GenerationConfig{
			RowsPerTable:   rowsPerTable,
			InterlaceRows:  0,
			StartTimestamp: 1700000000000,
			Step:           1000,
			Precision:      rowgen.PrecisionMillis,
		},
		Dispatch: DispatchConfig{
			ProducerCount:     2,
			ConsumerCount:     2,
			QueueCapacity:     16,
			QueueWarmupRatio:  0,
			SharedQueue:       true,
			MaxTablesPerBlock: tableCount,
			BlockCount:        4,
		},
		FormatType: format.FormatSQL,
		Formatters: reg,
		Pacing:     pacing.Config{Enabled: false},
		Retry:      sink.RetryConfig{MaxRetries: 0},
		Checkpoint: checkpoint.Config{Enabled: false},
		NewWriter: func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
			return writer
		},
	}, writer
}

func TestRunWritesAllRowsAcrossAllTables(t *testing.T) {
	cfg, writer := testConfig(t, 4, 10)
	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := o.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 40, summary.TotalRows)
	require.Equal(t, 4, summary.TablesWritten)
	require.False(t, summary.Interrupted)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.True(t, writer.closed)
	require.EqualValues(t, 40, writer.totalRows)
	require.Greater(t, writer.writes, 0)
}

func TestRunAbortsWhenWriterConnectFails(t *testing.T) {
	cfg, _ := testConfig(t, 2, 5)
	failing := &recordingWriter{connectErr: errConnectFailed}
	cfg.NewWriter = func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
		return failing
	}

	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = o.Run(ctx)
	require.Error(t, err)
}

func TestNewRejectsMissingWriterFactory(t *testing.T) {
	cfg, _ := testConfig(t, 1, 1)
	cfg.NewWriter = nil
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewRejectsZeroProducersOrConsumers(t *testing.T) {
	cfg, _ := testConfig(t, 1, 1)
	cfg.Dispatch.ProducerCount = 0
	_, err := New(cfg)
	require.Error(t, err)

	cfg2, _ := testConfig(t, 1, 1)
	cfg2.Dispatch.ConsumerCount = 0
	_, err = New(cfg2)
	require.Error(t, err)
}

func TestPartitionNamesSplitsIntoRoughlyEqualChunks(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	parts := partitionNames(names, 2)
	require.Len(t, parts, 2)
	require.Equal(t, 3, len(parts[0]))
	require.Equal(t, 2, len(parts[1]))

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	require.Equal(t, len(names), total)
}

func TestPacingPrecisionMapsAllThreeUnits(t *testing.T) {
	require.Equal(t, pacing.PrecisionMillis, pacingPrecision(rowgen.PrecisionMillis))
	require.Equal(t, pacing.PrecisionMicros, pacingPrecision(rowgen.PrecisionMicros))
	require.Equal(t, pacing.PrecisionNanos, pacingPrecision(rowgen.PrecisionNanos))
}
