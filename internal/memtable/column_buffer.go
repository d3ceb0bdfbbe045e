package memtable

import (
	"encoding/binary"
	"math"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// fixedColumn is a contiguous, pre-allocated buffer of maxRows fixed-width
// elements for one column. No allocation happens after construction.
type fixedColumn struct {
	tag      model.Tag
	elemSize int
	data     []byte
}

func newFixedColumn(tag model.Tag, maxRows int) *fixedColumn {
	size := tag.FixedSize()
	return &fixedColumn{tag: tag, elemSize: size, data: make([]byte, size*maxRows)}
}

func (c *fixedColumn) set(row int, cell model.Cell) {
	off := row * c.elemSize
	buf := c.data[off : off+c.elemSize]
	switch c.tag {
	case model.TagBool:
		if cell.Bool {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case model.TagInt8, model.TagUint8:
		buf[0] = byte(cell.I64)
	case model.TagInt16, model.TagUint16:
		binary.LittleEndian.PutUint16(buf, uint16(cell.I64))
	case model.TagInt32, model.TagUint32:
		binary.LittleEndian.PutUint32(buf, uint32(cell.I64))
	case model.TagFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(cell.F32))
	case model.TagInt64, model.TagUint64:
		v := cell.I64
		if c.tag == model.TagUint64 {
			binary.LittleEndian.PutUint64(buf, cell.U64)
			return
		}
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case model.TagDouble:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(cell.F64))
	}
}

func (c *fixedColumn) get(row int) model.Cell {
	off := row * c.elemSize
	buf := c.data[off : off+c.elemSize]
	cell := model.Cell{Tag: c.tag}
	switch c.tag {
	case model.TagBool:
		cell.Bool = buf[0] != 0
	case model.TagInt8:
		cell.I64 = int64(int8(buf[0]))
	case model.TagUint8:
		cell.I64 = int64(buf[0])
	case model.TagInt16:
		cell.I64 = int64(int16(binary.LittleEndian.Uint16(buf)))
	case model.TagUint16:
		cell.I64 = int64(binary.LittleEndian.Uint16(buf))
	case model.TagInt32:
		cell.I64 = int64(int32(binary.LittleEndian.Uint32(buf)))
	case model.TagUint32:
		cell.I64 = int64(binary.LittleEndian.Uint32(buf))
	case model.TagFloat:
		cell.F32 = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	case model.TagInt64:
		cell.I64 = int64(binary.LittleEndian.Uint64(buf))
	case model.TagUint64:
		cell.U64 = binary.LittleEndian.Uint64(buf)
	case model.TagDouble:
		cell.F64 = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return cell
}

func (c *fixedColumn) reset() {
	for i := range c.data {
		c.data[i] = 0
	}
}

// varColumn is an arena for one variable-width column: a flat byte buffer
// plus per-row (offset, length) pairs and a write cursor. Capacity is fixed
// at construction; exceeding it is a configuration error (rows-per-batch *
// average length must fit the configured arena size).
type varColumn struct {
	tag     model.Tag
	arena   []byte
	lengths []int32
	offsets []int32
	cursor  int
}

func newVarColumn(tag model.Tag, maxRows, arenaCapacity int) *varColumn {
	return &varColumn{
		tag:     tag,
		arena:   make([]byte, arenaCapacity),
		lengths: make([]int32, maxRows),
		offsets: make([]int32, maxRows),
	}
}

func (c *varColumn) append(row int, data []byte) {
	off := c.cursor
	n := copy(c.arena[off:], data)
	c.offsets[row] = int32(off)
	c.lengths[row] = int32(n)
	c.cursor += n
}

func (c *varColumn) get(row int) []byte {
	off := c.offsets[row]
	n := c.lengths[row]
	return c.arena[off : off+n]
}

func (c *varColumn) reset() {
	c.cursor = 0
	for i := range c.lengths {
		c.lengths[i] = 0
		c.offsets[i] = 0
	}
}

func cellBytes(tag model.Tag, cell model.Cell) []byte {
	switch tag {
	case model.TagNchar:
		if len(cell.NcharCodepoints) > 0 {
			buf := make([]byte, len(cell.NcharCodepoints)*2)
			for i, cp := range cell.NcharCodepoints {
				binary.LittleEndian.PutUint16(buf[i*2:], cp)
			}
			return buf
		}
		return []byte(cell.Str)
	case model.TagVarchar, model.TagVarbinary:
		return cell.Bytes
	case model.TagJSON, model.TagGeometry, model.TagDecimal:
		return []byte(cell.Str)
	default:
		return cell.Bytes
	}
}

func bytesToCell(tag model.Tag, data []byte) model.Cell {
	cell := model.Cell{Tag: tag}
	switch tag {
	case model.TagNchar:
		cps := make([]uint16, len(data)/2)
		for i := range cps {
			cps[i] = binary.LittleEndian.Uint16(data[i*2:])
		}
		cell.NcharCodepoints = cps
	case model.TagVarchar, model.TagVarbinary:
		cell.Bytes = data
	default:
		cell.Str = string(data)
	}
	return cell
}
