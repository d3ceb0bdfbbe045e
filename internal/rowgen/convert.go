package rowgen

import (
	"strconv"
	"unicode/utf16"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "rowgen: parsing %q as a number", raw)
	}
	return f, nil
}

func utf8ToUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// numericCellFromFloat converts f to a cell of the given numeric tag,
// truncating toward zero for integer tags.
func numericCellFromFloat(tag model.Tag, f float64) (model.Cell, error) {
	switch tag {
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64,
		model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return model.Cell{Tag: tag, I64: int64(f)}, nil
	case model.TagFloat:
		return model.Cell{Tag: tag, F32: float32(f)}, nil
	case model.TagDouble:
		return model.Cell{Tag: tag, F64: f}, nil
	case model.TagBool:
		return model.Cell{Tag: tag, Bool: f != 0}, nil
	default:
		return model.Cell{}, errors.Errorf("rowgen: cannot convert a number to %s", tag)
	}
}

// coerceScalar converts an arbitrary scripted-expression result (as
// returned by expr-lang/expr, typically int/int64/float64/bool/string) to a
// cell of the given target tag (spec §4.2 "Expression generator"). It fails
// loudly on coercions that would silently truncate across unrelated
// categories, e.g. a numeric result coerced to geometry.
func coerceScalar(tag model.Tag, v interface{}) (model.Cell, error) {
	switch tag {
	case model.TagVarchar, model.TagVarbinary:
		s, ok := asString(v)
		if !ok {
			return model.Cell{}, errors.Errorf("rowgen: cannot coerce %T to %s", v, tag)
		}
		return model.Cell{Tag: tag, Bytes: []byte(s)}, nil
	case model.TagNchar:
		s, ok := asString(v)
		if !ok {
			return model.Cell{}, errors.Errorf("rowgen: cannot coerce %T to %s", v, tag)
		}
		return model.Cell{Tag: tag, NcharCodepoints: utf8ToUTF16(s)}, nil
	case model.TagJSON, model.TagGeometry, model.TagDecimal:
		s, ok := asString(v)
		if !ok {
			return model.Cell{}, errors.Errorf("rowgen: expression result of type %T cannot feed a %s column without an explicit string formula", v, tag)
		}
		return model.Cell{Tag: tag, Str: s}, nil
	case model.TagBool:
		b, ok := v.(bool)
		if !ok {
			return model.Cell{}, errors.Errorf("rowgen: cannot coerce %T to BOOL", v)
		}
		return model.Cell{Tag: tag, Bool: b}, nil
	default:
		f, ok := asFloat(v)
		if !ok {
			return model.Cell{}, errors.Errorf("rowgen: cannot coerce %T to a numeric %s column", v, tag)
		}
		return numericCellFromFloat(tag, f)
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
