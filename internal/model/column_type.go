// Copyright 2018 The Cockroach Authors.
// Copyright (c) 2022-present, Shanghai Yunxi Technology Co, Ltd. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the cell/column type tagged union and the row and
// schema types shared by the generator, memory pool, and formatter packages.
package model

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Tag names the logical schema type of a column or tag.
type Tag int

// Recognized column type tags.
const (
	TagBool Tag = iota
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUint8
	TagUint16
	TagUint32
	TagUint64
	TagFloat
	TagDouble
	TagDecimal
	TagNchar
	TagVarchar
	TagJSON
	TagVarbinary
	TagGeometry
)

var tagNames = map[Tag]string{
	TagBool:      "BOOL",
	TagInt8:      "TINYINT",
	TagInt16:     "SMALLINT",
	TagInt32:     "INT",
	TagInt64:     "BIGINT",
	TagUint8:     "TINYINT UNSIGNED",
	TagUint16:    "SMALLINT UNSIGNED",
	TagUint32:    "INT UNSIGNED",
	TagUint64:    "BIGINT UNSIGNED",
	TagFloat:     "FLOAT",
	TagDouble:    "DOUBLE",
	TagDecimal:   "DECIMAL",
	TagNchar:     "NCHAR",
	TagVarchar:   "VARCHAR",
	TagJSON:      "JSON",
	TagVarbinary: "VARBINARY",
	TagGeometry:  "GEOMETRY",
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseTag resolves the schema-file spelling of a column type (its SQL type
// name, case-insensitively) back to a Tag. Returns an error for anything not
// in tagNames.
func ParseTag(name string) (Tag, error) {
	for t, n := range tagNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, errors.Errorf("model: unrecognized column type %q", name)
}

// IsVarLength reports whether values of tag t are variable-width and require
// an arena allocation in a TableBlock rather than a fixed-stride buffer.
func (t Tag) IsVarLength() bool {
	switch t {
	case TagDecimal, TagNchar, TagVarchar, TagJSON, TagVarbinary, TagGeometry:
		return true
	default:
		return false
	}
}

// FixedSize returns the per-row byte footprint of a fixed-width tag. It
// panics on a var-length tag; callers must check IsVarLength first.
func (t Tag) FixedSize() int {
	switch t {
	case TagBool, TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt32, TagUint32, TagFloat:
		return 4
	case TagInt64, TagUint64, TagDouble:
		return 8
	default:
		panic(errors.Errorf("model: FixedSize called on var-length tag %s", t))
	}
}

// Cell is a tagged-union cell value. Exactly one field is meaningful,
// selected by Tag; Null, when true, means the cell carries no value
// regardless of Tag.
type Cell struct {
	Tag   Tag
	Null  bool
	Bool  bool
	I64   int64
	U64   uint64
	F32   float32
	F64   float64
	// Str backs decimal, nchar (UTF-8 source before UTF-16 conversion), json,
	// and geometry (WKT) cells.
	Str string
	// Bytes backs varchar/binary and varbinary cells.
	Bytes []byte
	// NcharCodepoints holds the UTF-16 code units for a nchar cell once
	// converted; Str retains the original UTF-8 text for re-derivation.
	NcharCodepoints []uint16
}

// NullCell returns a null cell carrying the given tag.
func NullCell(tag Tag) Cell {
	return Cell{Tag: tag, Null: true}
}

// AsUint64 returns the cell's unsigned integer value. Uint8/16/32 cells
// store their value in I64 (it always fits); only Uint64 needs the wider
// U64 field to represent values above math.MaxInt64.
func (c Cell) AsUint64() uint64 {
	if c.Tag == TagUint64 {
		return c.U64
	}
	return uint64(c.I64)
}
