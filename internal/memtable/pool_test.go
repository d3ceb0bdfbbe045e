package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

func testSchema() []model.ColumnConfig {
	return []model.ColumnConfig{
		{Name: "ival", Type: model.TagInt32},
		{Name: "fval", Type: model.TagDouble},
		{Name: "sval", Type: model.TagVarchar, Length: 32},
	}
}

func makeRow(ts int64, i int32, f float64, s string) model.Row {
	return model.Row{
		Timestamp: ts,
		Columns: []model.Cell{
			{Tag: model.TagInt32, I64: int64(i)},
			{Tag: model.TagDouble, F64: f},
			{Tag: model.TagVarchar, Bytes: []byte(s)},
		},
	}
}

func TestMemoryPoolAcquireRelease(t *testing.T) {
	pool := NewMemoryPool(2, 4, 16, testSchema(), nil, false, 0)

	b1, ok := pool.Acquire()
	require.True(t, ok)
	require.NotNil(t, b1)

	b2, ok := pool.Acquire()
	require.True(t, ok)
	require.NotSame(t, b1, b2)

	pool.Release(b1)
	pool.Release(b2)

	// Releasing twice must not double-enqueue: only two blocks exist.
	pool.Release(b1)

	b3, ok := pool.Acquire()
	require.True(t, ok)
	b4, ok := pool.Acquire()
	require.True(t, ok)
	require.NotSame(t, b3, b4)
}

func TestConvertToMemoryBlockRoundTrip(t *testing.T) {
	pool := NewMemoryPool(1, 4, 16, testSchema(), nil, false, 0)

	mb := &MultiBatch{
		Tables: []TableRows{
			{
				TableName: "d0",
				Rows: []model.Row{
					makeRow(1000, 1, 1.5, "a"),
					makeRow(1001, 2, 2.5, "bb"),
				},
			},
			{
				TableName: "d1",
				Rows: []model.Row{
					makeRow(999, 3, 3.5, "ccc"),
				},
			},
		},
	}

	block, err := pool.ConvertToMemoryBlock(mb)
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, 2, block.UsedTables())
	require.Equal(t, 3, block.TotalRows())
	require.Equal(t, int64(999), block.StartTime())
	require.Equal(t, int64(1001), block.EndTime())

	d0 := block.Table(0)
	require.Equal(t, "d0", d0.TableName())
	require.Equal(t, 2, d0.UsedRows())
	require.Equal(t, int64(1000), d0.Timestamp(0))
	require.False(t, d0.IsNull(0, 0))
	require.Equal(t, int64(1), d0.Cell(0, 0).I64)
	require.Equal(t, "bb", string(d0.Cell(2, 1).Bytes))

	descs := block.BindDescriptors()
	require.Len(t, descs, 2)
	require.Equal(t, "d0", descs[0].TableName)
	require.Equal(t, 2, descs[0].RowCount)

	pool.Release(block)

	// After release the block is reusable and its table is no longer bound.
	b2, ok := pool.Acquire()
	require.True(t, ok)
	require.Equal(t, 0, b2.UsedTables())
}

func TestConvertToMemoryBlockEmptyReturnsNil(t *testing.T) {
	pool := NewMemoryPool(1, 4, 16, testSchema(), nil, false, 0)
	block, err := pool.ConvertToMemoryBlock(&MultiBatch{})
	require.NoError(t, err)
	require.Nil(t, block)

	block, err = pool.ConvertToMemoryBlock(&MultiBatch{Tables: []TableRows{{TableName: "d0"}}})
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestConvertToMemoryBlockTableCapacityExceeded(t *testing.T) {
	pool := NewMemoryPool(1, 1, 16, testSchema(), nil, false, 0)
	mb := &MultiBatch{
		Tables: []TableRows{
			{TableName: "d0", Rows: []model.Row{makeRow(1, 1, 1, "x")}},
			{TableName: "d1", Rows: []model.Row{makeRow(2, 2, 2, "y")}},
		},
	}
	_, err := pool.ConvertToMemoryBlock(mb)
	require.Error(t, err)

	// The block must have been released back to the pool despite the error.
	b, ok := pool.Acquire()
	require.True(t, ok)
	require.Equal(t, 0, b.UsedTables())
}

func TestRegisterAndLookupTableTags(t *testing.T) {
	pool := NewMemoryPool(1, 2, 8, testSchema(), []model.ColumnConfig{{Name: "region", Type: model.TagVarchar, Length: 16}}, false, 0)

	require.Nil(t, pool.TableTags("d0"))

	tags := []model.Cell{{Tag: model.TagVarchar, Bytes: []byte("east")}}
	pool.RegisterTableTags("d0", tags)

	got := pool.TableTags("d0")
	require.Equal(t, "east", string(got[0].Bytes))
}

func TestTerminateUnblocksAcquire(t *testing.T) {
	pool := NewMemoryPool(1, 2, 8, testSchema(), nil, false, 0)

	b, ok := pool.Acquire()
	require.True(t, ok)
	_ = b // hold the only block so the next Acquire has nothing to dequeue

	pool.Terminate()

	got, ok := pool.Acquire()
	require.False(t, ok)
	require.Same(t, sentinelBlock, got)
}
