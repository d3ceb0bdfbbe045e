package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

func testColumns() []model.ColumnConfig {
	return []model.ColumnConfig{
		{Name: "ival", Type: model.TagInt32},
		{Name: "fval", Type: model.TagDouble},
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
				{Tag: model.TagDouble, F64: 3.14159265},
				{Tag: model.TagVarchar, Bytes: []byte("it's")},
			}},
		}},
	}}
	block, err := pool.ConvertToMemoryBlock(mb)
	require.NoError(t, err)
	return block
}

func TestSQLFormatterEscapesAndFormats(t *testing.T) {
	f := NewSQLFormatter()
	_, err := f.Init(testColumns(), nil)
	require.NoError(t, err)

	res, err := f.Format(testBlock(t), false)
	require.NoError(t, err)
	require.Contains(t, res.SQL, "INSERT INTO `d0` VALUES (1000,42,3.141593,'it''s');")
}

func TestStmtFormatterShapes(t *testing.T) {
	f := NewStmtFormatter()
	ctx, err := f.Init(testColumns(), nil)
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO ? VALUES(?,?,?,?)", ctx.PrepareSQL)

	res, err := f.Format(testBlock(t), false)
	require.NoError(t, err)
	require.Len(t, res.Binds, 1)
	require.Equal(t, "d0", res.Binds[0].TableName)
	require.Equal(t, 1, res.Binds[0].RowCount)

	f2 := NewStmtFormatter().WithShape(BindShapeSuperTable, "stb")
	ctx2, err := f2.Init(testColumns(), nil)
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO `stb`(tbname,ts,ival,fval,sval) VALUES(?,?,?,?,?)", ctx2.PrepareSQL)

	f3 := NewStmtFormatter().WithShape(BindShapeAutoCreate, "stb")
	ctx3, err := f3.Init(testColumns(), []model.ColumnConfig{{Name: "region", Type: model.TagVarchar}})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO ? USING `stb` TAGS(?) VALUES(?,?,?,?)", ctx3.PrepareSQL)
}

func TestToJSONInplace(t *testing.T) {
	block := testBlock(t)
	columns := testColumns()
	src := RowSourceFromBlock(block, 0, 0, columns, nil)

	var bb bytes.Buffer
	err := ToJSONInplace(columns, nil, src, "tbname", &bb)
	require.NoError(t, err)
	out := bb.String()
	require.Contains(t, out, `"ts":1000`)
	require.Contains(t, out, `"ival":42`)
	require.Contains(t, out, `"tbname":"d0"`)
}

func TestToInfluxInplace(t *testing.T) {
	block := testBlock(t)
	columns := testColumns()
	src := RowSourceFromBlock(block, 0, 0, columns, []model.Cell{{Tag: model.TagVarchar, Bytes: []byte("east")}})

	var bb bytes.Buffer
	ToInfluxInplace(columns, []model.ColumnConfig{{Name: "region", Type: model.TagVarchar}}, src, "m", &bb)
	line := bb.String()
	require.True(t, strings.HasPrefix(line, `m,region="east" `))
	require.Contains(t, line, "ival=42i")
	require.Contains(t, line, "sval=\"it's\"")
	require.True(t, strings.HasSuffix(line, " 1000"))
}

func TestTemplateResolution(t *testing.T) {
	columns := testColumns()
	tags := []model.ColumnConfig{{Name: "region", Type: model.TagVarchar}}
	src := RowSource{
		TableName:    "d0",
		Timestamp:    1000,
		HasTimestamp: true,
		Columns: []model.Cell{
			{Tag: model.TagInt32, I64: 42},
			{Tag: model.TagDouble, F64: 1.5},
			{Tag: model.TagVarchar, Bytes: []byte("x")},
		},
		Tags: []model.Cell{{Tag: model.TagVarchar, Bytes: []byte("east")}},
	}

	tmpl := CompileTemplate("{table}-{ts}-{region}-{missing}")
	got := tmpl.Resolve(columns, tags, src)
	require.Equal(t, "d0-1000-east-{COL_NOT_FOUND:missing}", got)
}

func TestTemplateResolutionMissingTimestamp(t *testing.T) {
	tmpl := CompileTemplate("{ts}")
	got := tmpl.Resolve(nil, nil, RowSource{})
	require.Equal(t, "INVALID_TS", got)
}

func TestKafkaFormatterJSON(t *testing.T) {
	columns := testColumns()
	f := NewKafkaFormatter(KafkaFormatterConfig{KeyPattern: "{table}-{ival}", ValueSerializer: SerializerJSON})
	_, err := f.Init(columns, nil)
	require.NoError(t, err)

	res, err := f.Format(testBlock(t), false)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	require.Equal(t, "d0-42", res.Messages[0].Key)
	require.Contains(t, string(res.Messages[0].Payload), `"ival":42`)
}

func TestMQTTFormatterInfluxNoCompression(t *testing.T) {
	columns := testColumns()
	f := NewMQTTFormatter(MQTTFormatterConfig{
		TopicPattern:    "devices/{table}",
		ValueSerializer: SerializerInflux,
		Measurement:     "m",
	})
	_, err := f.Init(columns, nil)
	require.NoError(t, err)

	res, err := f.Format(testBlock(t), false)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	require.Equal(t, "devices/d0", res.Messages[0].Key)
	require.True(t, strings.HasPrefix(string(res.Messages[0].Payload), "m "))
}

func TestMQTTFormatterInfluxDefaultMeasurementAndQuotedTags(t *testing.T) {
	columns := []model.ColumnConfig{{Name: "f1", Type: model.TagDouble}}
	tags := []model.ColumnConfig{
		{Name: "region", Type: model.TagVarchar},
		{Name: "sensor_id", Type: model.TagInt32},
	}
	f := NewMQTTFormatter(MQTTFormatterConfig{
		TopicPattern:    "devices/{table}",
		ValueSerializer: SerializerInflux,
	})
	f.SetTagLookup(func(tableName string) []model.Cell {
		return []model.Cell{
			{Tag: model.TagVarchar, Bytes: []byte("us-west")},
			{Tag: model.TagInt32, I64: 1001},
		}
	})
	_, err := f.Init(columns, tags)
	require.NoError(t, err)

	pool := memtable.NewMemoryPool(1, 4, 8, columns, nil, false, 0)
	mb := &memtable.MultiBatch{Tables: []memtable.TableRows{
		{TableName: "table1", Rows: []model.Row{
			{Timestamp: 1500000000000, Columns: []model.Cell{{Tag: model.TagDouble, F64: 3.14}}},
		}},
	}}
	block, err := pool.ConvertToMemoryBlock(mb)
	require.NoError(t, err)

	res, err := f.Format(block, false)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	require.Equal(t, `table1,region="us-west",sensor_id="1001" f1=3.14 1500000000000`, string(res.Messages[0].Payload))
}

func TestRegistryConstructsIndependentInstances(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()

	f1, ok := r1.New(FormatSQL)
	require.True(t, ok)
	f2, ok := r2.New(FormatSQL)
	require.True(t, ok)
	require.NotSame(t, f1, f2)

	_, ok = r1.New("nonexistent")
	require.False(t, ok)
}
