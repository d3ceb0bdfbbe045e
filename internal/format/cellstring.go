package format

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// sigDigits bounds floating-point rendering precision across every
// formatter (spec §4.5 "rendering floating-point with up to 7 significant
// digits").
const sigDigits = 7

func ncharToUTF8(cps []uint16) string {
	return string(utf16.Decode(cps))
}

func cellText(cell model.Cell) string {
	switch cell.Tag {
	case model.TagNchar:
		return ncharToUTF8(cell.NcharCodepoints)
	case model.TagVarchar, model.TagVarbinary:
		return string(cell.Bytes)
	case model.TagDecimal, model.TagJSON, model.TagGeometry:
		return cell.Str
	default:
		return ""
	}
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// sqlLiteral renders cell as a SQL VALUES literal (spec §4.5 "SQL
// formatter"): single-quote-escaped strings, up to 7 significant digits for
// floats, true/false booleans, NULL for null cells, UTF-8 nchar text.
func sqlLiteral(cell model.Cell) string {
	if cell.Null {
		return "NULL"
	}
	switch cell.Tag {
	case model.TagBool:
		if cell.Bool {
			return "true"
		}
		return "false"
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return strconv.FormatInt(cell.I64, 10)
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return strconv.FormatUint(cell.AsUint64(), 10)
	case model.TagFloat:
		return strconv.FormatFloat(float64(cell.F32), 'g', sigDigits, 32)
	case model.TagDouble:
		return strconv.FormatFloat(cell.F64, 'g', sigDigits, 64)
	case model.TagNchar, model.TagVarchar, model.TagVarbinary, model.TagDecimal, model.TagJSON, model.TagGeometry:
		return "'" + escapeSQLString(cellText(cell)) + "'"
	default:
		return "NULL"
	}
}

// influxValue renders cell in InfluxDB line-protocol field/tag form: string
// fields quoted, integers suffixed with "i", floats never quoted (spec
// §4.5 "JSON/Influx serializers").
func influxValue(cell model.Cell) string {
	if cell.Null {
		return ""
	}
	switch cell.Tag {
	case model.TagBool:
		if cell.Bool {
			return "true"
		}
		return "false"
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return strconv.FormatInt(cell.I64, 10) + "i"
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return strconv.FormatUint(cell.AsUint64(), 10) + "i"
	case model.TagFloat:
		return strconv.FormatFloat(float64(cell.F32), 'g', sigDigits, 32)
	case model.TagDouble:
		return strconv.FormatFloat(cell.F64, 'g', sigDigits, 64)
	default:
		return "\"" + strings.ReplaceAll(cellText(cell), "\"", "\\\"") + "\""
	}
}

// jsonValue renders cell as a JSON scalar for ToJSONInplace.
func jsonValue(cell model.Cell) interface{} {
	if cell.Null {
		return nil
	}
	switch cell.Tag {
	case model.TagBool:
		return cell.Bool
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return cell.I64
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return cell.AsUint64()
	case model.TagFloat:
		return float64(cell.F32)
	case model.TagDouble:
		return cell.F64
	default:
		return cellText(cell)
	}
}

// plainText stringifies a cell for topic/key token resolution (spec §4.5
// "TopicGenerator / KeyGenerator"), independent of any wire encoding.
func plainText(cell model.Cell) string {
	if cell.Null {
		return ""
	}
	switch cell.Tag {
	case model.TagBool:
		if cell.Bool {
			return "true"
		}
		return "false"
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return strconv.FormatInt(cell.I64, 10)
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return strconv.FormatUint(cell.AsUint64(), 10)
	case model.TagFloat:
		return strconv.FormatFloat(float64(cell.F32), 'g', sigDigits, 32)
	case model.TagDouble:
		return strconv.FormatFloat(cell.F64, 'g', sigDigits, 64)
	default:
		return cellText(cell)
	}
}
