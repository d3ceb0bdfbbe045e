package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/sinkerr"
)

func testColumns() []model.ColumnConfig {
	return []model.ColumnConfig{
		{Name: "ival", Type: model.TagInt32},
		{Name: "sval", Type: model.TagVarchar, Length: 16},
	}
}

func testBlock(t *testing.T) *memtable.MemoryBlock {
	t.Helper()
	pool := memtable.NewMemoryPool(1, 4, 8, testColumns(), nil, false, 0)
	mb := &memtable.MultiBatch{Tables: []memtable.TableRows{
		{TableName: "d0", Rows: []model.Row{
			{Timestamp: 1000, Columns: []model.Cell{
				{Tag: model.TagInt32, I64: 42},
				{Tag: model.TagVarchar, Bytes: []byte("hello")},
			}},
		}},
	}}
	block, err := pool.ConvertToMemoryBlock(mb)
	require.NoError(t, err)
	return block
}

func fixedPacer(t *testing.T, enabled bool) *pacing.Strategy {
	t.Helper()
	s, err := pacing.New(pacing.Config{
		Enabled:      enabled,
		Strategy:     pacing.Fixed,
		WaitMode:     pacing.WaitSleep,
		BaseInterval: 1, // ms, kept tiny so tests stay fast
	}, pacing.PrecisionMillis)
	require.NoError(t, err)
	return s
}

func TestRetryPolicyRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 3, RetryInterval: time.Millisecond, OnFailure: OnFailureWarnAndContinue}, "test")

	err := policy.Execute(func() error {
		attempts++
		if attempts < 3 {
			return sinkerr.NewTransient(errors.New("connection reset"))
		}
		return nil
	}, "unit test op")

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyShortCircuitsOnFatal(t *testing.T) {
	attempts := 0
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 5, RetryInterval: time.Millisecond, OnFailure: OnFailureWarnAndContinue}, "test")

	err := policy.Execute(func() error {
		attempts++
		return sinkerr.NewFatal(errors.New("bad credentials"))
	}, "unit test op")

	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.False(t, sinkerr.IsTransient(err))
}

func TestRetryPolicyExhaustionWithExitWrapsFatal(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 2, RetryInterval: time.Millisecond, OnFailure: OnFailureExit}, "test")

	attempts := 0
	err := policy.Execute(func() error {
		attempts++
		return sinkerr.NewTransient(errors.New("broker unavailable"))
	}, "unit test op")

	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
	require.True(t, sinkerr.IsFatal(err))
}

func TestRetryPolicyExhaustionWithWarnAndContinueReturnsLastError(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 1, RetryInterval: time.Millisecond, OnFailure: OnFailureWarnAndContinue}, "test")

	attempts := 0
	err := policy.Execute(func() error {
		attempts++
		return sinkerr.NewTransient(errors.New("broker unavailable"))
	}, "unit test op")

	require.Error(t, err)
	require.Equal(t, 2, attempts)
	require.True(t, sinkerr.IsTransient(err))
	require.False(t, sinkerr.IsFatal(err))
}

func TestLatencyHistogramComputesPercentiles(t *testing.T) {
	h := newLatencyHistogram("test_latency_seconds", "help text", nil)
	for i := 1; i <= 100; i++ {
		h.addSample(time.Duration(i) * time.Millisecond)
	}

	stats := h.snapshot()
	require.Equal(t, 100, stats.Count)
	require.Equal(t, time.Millisecond, stats.Min)
	require.Equal(t, 100*time.Millisecond, stats.Max)
	require.Equal(t, 90*time.Millisecond, stats.P90)
	require.Equal(t, 95*time.Millisecond, stats.P95)
	require.Equal(t, 99*time.Millisecond, stats.P99)
}

func TestLatencyHistogramEmptySnapshot(t *testing.T) {
	h := newLatencyHistogram("empty_latency_seconds", "help text", nil)
	stats := h.snapshot()
	require.Equal(t, LatencyStats{}, stats)
}

func TestBaseWriterExecuteWriteUpdatesStateOnSuccess(t *testing.T) {
	pacer := fixedPacer(t, true)
	retry := NewRetryPolicy(RetryConfig{MaxRetries: 0, OnFailure: OnFailureWarnAndContinue}, "test")
	bw := NewBaseWriter("unit", pacer, retry, nil)

	calls := 0
	err := bw.ExecuteWrite(Envelope{StartTime: 1000, EndTime: 1001}, "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, int64(1000), bw.lastStartTime)
	require.Equal(t, int64(1001), bw.lastEndTime)
	require.False(t, bw.firstWrite)

	stats := bw.WriteMetrics()
	require.Equal(t, 1, stats.Count)
}

func TestBaseWriterExecuteWriteLeavesStateOnFailure(t *testing.T) {
	pacer := fixedPacer(t, true)
	retry := NewRetryPolicy(RetryConfig{MaxRetries: 0, OnFailure: OnFailureWarnAndContinue}, "test")
	bw := NewBaseWriter("unit", pacer, retry, nil)

	err := bw.ExecuteWrite(Envelope{StartTime: 1000, EndTime: 1001}, "op", func() error {
		return sinkerr.NewFatal(errors.New("boom"))
	})
	require.Error(t, err)
	require.True(t, bw.firstWrite)
	require.Equal(t, int64(0), bw.lastStartTime)
}

func TestBaseWriterSamplesPlayLatencyOnlyForLiteralStrategy(t *testing.T) {
	literalPacer, err := pacing.New(pacing.Config{Enabled: true, Strategy: pacing.Literal, WaitMode: pacing.WaitSleep}, pacing.PrecisionMillis)
	require.NoError(t, err)
	retry := NewRetryPolicy(RetryConfig{MaxRetries: 0, OnFailure: OnFailureWarnAndContinue}, "test")
	bw := NewBaseWriter("literal", literalPacer, retry, nil)

	nowMS := time.Now().UnixMilli()
	err = bw.ExecuteWrite(Envelope{StartTime: nowMS, EndTime: nowMS}, "op", func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, bw.PlayMetrics().Count)

	fixed := fixedPacer(t, true)
	bw2 := NewBaseWriter("fixed", fixed, retry, nil)
	err = bw2.ExecuteWrite(Envelope{StartTime: nowMS, EndTime: nowMS}, "op", func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, 0, bw2.PlayMetrics().Count)
}

func TestFilesystemWriterWritesCSVRows(t *testing.T) {
	dir := t.TempDir()
	pacer := fixedPacer(t, false)
	retry := NewRetryPolicy(RetryConfig{MaxRetries: 0, OnFailure: OnFailureWarnAndContinue}, "test")
	w := NewFilesystemWriter(FilesystemConfig{Directory: dir, FilePrefix: "batch"}, pacer, retry, nil)

	require.NoError(t, w.Connect(context.Background()))
	block := testBlock(t)
	err := w.Write(context.Background(), Envelope{
		StartTime: 1000,
		EndTime:   1000,
		Block:     block,
		Columns:   testColumns(),
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.Open(filepath.Join(dir, "batch_0.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{"d0", "1000", "42", "hello"}, records[0])
}

func TestFilesystemWriterRotatesAfterRowLimit(t *testing.T) {
	dir := t.TempDir()
	pacer := fixedPacer(t, false)
	retry := NewRetryPolicy(RetryConfig{MaxRetries: 0, OnFailure: OnFailureWarnAndContinue}, "test")
	w := NewFilesystemWriter(FilesystemConfig{Directory: dir, FilePrefix: "batch", RotateRows: 1}, pacer, retry, nil)
	require.NoError(t, w.Connect(context.Background()))

	for i := 0; i < 2; i++ {
		err := w.Write(context.Background(), Envelope{
			StartTime: int64(1000 + i),
			EndTime:   int64(1000 + i),
			Block:     testBlock(t),
			Columns:   testColumns(),
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	require.FileExists(t, filepath.Join(dir, "batch_0.csv"))
	require.FileExists(t, filepath.Join(dir, "batch_1.csv"))
}
