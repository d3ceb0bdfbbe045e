package format

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// RowSource is the minimal per-table view the JSON/Influx serializers need:
// a timestamp and cell values for one row, plus the table's tags.
type RowSource struct {
	TableName    string
	Timestamp    int64
	HasTimestamp bool
	Columns      []model.Cell
	Tags         []model.Cell
}

// RowSourceFromBlock builds a RowSource for table slot t, row r of block,
// reading row cells for the given columns and attaching tagCells (looked up
// by the caller from the pool's tag registry — formatters have no pool
// reference of their own).
func RowSourceFromBlock(block *memtable.MemoryBlock, t, row int, columns []model.ColumnConfig, tagCells []model.Cell) RowSource {
	tb := block.Table(t)
	cells := make([]model.Cell, len(columns))
	for col := range columns {
		if !tb.IsNull(col, row) {
			cells[col] = tb.Cell(col, row)
		} else {
			cells[col] = model.NullCell(columns[col].Type)
		}
	}
	return RowSource{
		TableName:    tb.TableName(),
		Timestamp:    tb.Timestamp(row),
		HasTimestamp: true,
		Tags:         tagCells,
		Columns:      cells,
	}
}

// ToJSONInplace fills out with a JSON object holding ts, every column, every
// tag and, if tbnameKey is non-empty, the table name under that key, for one
// row (spec §4.5 "JSON/Influx serializers"). columns and tags must be given
// in the same order as src.Columns/src.Tags. The object is marshaled from a
// map, so its keys appear in sorted order, not in schema order; a tag or
// tbnameKey sharing a column's name replaces that column's value.
func ToJSONInplace(columns, tags []model.ColumnConfig, src RowSource, tbnameKey string, out *bytes.Buffer) error {
	obj := make(map[string]interface{}, len(columns)+len(tags)+2)
	obj["ts"] = src.Timestamp
	for i, c := range columns {
		if i < len(src.Columns) {
			obj[c.Name] = jsonValue(src.Columns[i])
		}
	}
	for i, c := range tags {
		if i < len(src.Tags) {
			obj[c.Name] = jsonValue(src.Tags[i])
		}
	}
	if tbnameKey != "" {
		obj[tbnameKey] = src.TableName
	}
	enc, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	out.Write(enc)
	return nil
}

// ToInfluxInplace fills out with an InfluxDB line-protocol record:
// `measurement,tag="val"[,...] col=val[,...] ts` (spec §4.5). measurement
// defaults to src.TableName when unconfigured.
func ToInfluxInplace(columns, tags []model.ColumnConfig, src RowSource, measurement string, out *bytes.Buffer) {
	if measurement == "" {
		measurement = src.TableName
	}
	out.WriteString(measurement)
	for i, c := range tags {
		if i >= len(src.Tags) || src.Tags[i].Null {
			continue
		}
		out.WriteByte(',')
		out.WriteString(c.Name)
		out.WriteByte('=')
		out.WriteString(influxTagValue(src.Tags[i]))
	}
	out.WriteByte(' ')
	var fields []string
	for i, c := range columns {
		if i >= len(src.Columns) || src.Columns[i].Null {
			continue
		}
		fields = append(fields, c.Name+"="+influxValue(src.Columns[i]))
	}
	out.WriteString(strings.Join(fields, ","))
	out.WriteByte(' ')
	out.WriteString(strconv.FormatInt(src.Timestamp, 10))
}

func influxTagValue(cell model.Cell) string {
	// Tag values are always rendered as quoted text, numeric or not (spec
	// §4.5 scenario 4: `sensor_id="1001"`), escaping embedded quotes.
	v := plainText(cell)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
