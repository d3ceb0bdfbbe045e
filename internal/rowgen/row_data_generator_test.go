package rowgen

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

func newSequentialRowGen(t *testing.T) *RowGenerator {
	t.Helper()
	ts, err := NewTimestampGenerator(0, 1, PrecisionMillis)
	require.NoError(t, err)
	og, err := NewOrderGenerator(model.ColumnConfig{Type: model.TagInt32, OrderMin: 0, OrderMax: 1000000})
	require.NoError(t, err)
	return NewRowGenerator(ts, []ColumnGenerator{og})
}

func TestRowDataGeneratorProducesAllRows(t *testing.T) {
	rg := newSequentialRowGen(t)
	gen := NewRowDataGenerator("d0", 5, rg, nil, rand.New(rand.NewSource(1)))

	var rows []model.Row
	for {
		row, status, err := gen.Next()
		require.NoError(t, err)
		if status == StatusDone {
			break
		}
		require.Equal(t, StatusRow, status)
		rows = append(rows, row)
	}
	require.Len(t, rows, 5)
	require.False(t, gen.HasMore())
}

func TestRowDataGeneratorAlwaysDisordersDivertsAndReleases(t *testing.T) {
	rg := newSequentialRowGen(t)
	windows := []DisorderWindow{{Start: 0, End: 1000000, Ratio: 1.0, LatencyHigh: 3}}
	gen := NewRowDataGenerator("d0", 4, rg, windows, rand.New(rand.NewSource(7)))

	skips := 0
	var delivered []model.Row
	for i := 0; i < 40; i++ {
		row, status, err := gen.Next()
		require.NoError(t, err)
		switch status {
		case StatusDone:
			i = 40
		case StatusSkip:
			skips++
		case StatusRow:
			delivered = append(delivered, row)
		}
		if status == StatusDone {
			break
		}
	}
	require.Equal(t, 4, len(delivered))
	require.Greater(t, skips, 0)
}

func TestRowDataGeneratorFlushDrainsPending(t *testing.T) {
	rg := newSequentialRowGen(t)
	windows := []DisorderWindow{{Start: 0, End: 1000000, Ratio: 1.0, LatencyHigh: 1000000}}
	gen := NewRowDataGenerator("d0", 2, rg, windows, rand.New(rand.NewSource(3)))

	for {
		_, status, err := gen.Next()
		require.NoError(t, err)
		if status == StatusDone {
			break
		}
	}
	require.Greater(t, gen.delayQueue.Len(), 0)
	gen.Flush()
	require.Equal(t, 0, gen.delayQueue.Len())
}

func TestCSVBackedRowDataGenerator(t *testing.T) {
	rows := []model.Row{
		{Timestamp: 1, Columns: []model.Cell{{Tag: model.TagInt32, I64: 1}}},
		{Timestamp: 2, Columns: []model.Cell{{Tag: model.TagInt32, I64: 2}}},
	}
	gen := NewCSVRowDataGenerator("d0", 3, rows, nil, rand.New(rand.NewSource(1)))

	var got []int64
	for {
		row, status, err := gen.Next()
		require.NoError(t, err)
		if status == StatusDone {
			break
		}
		got = append(got, row.Columns[0].I64)
	}
	// 3 rows requested from a 2-row source: it wraps and replays.
	require.Equal(t, []int64{1, 2, 1}, got)
}
