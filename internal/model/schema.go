package model

// GeneratorKind selects how a column's values are produced.
type GeneratorKind int

// Recognized generator kinds.
const (
	GenRandom GeneratorKind = iota
	GenOrder
	GenExpression
)

// ColumnConfig describes one column (or tag) of a super-table schema: its
// name, logical type, generator, and generator parameters. The zero value is
// not meaningful; callers must set Name and Type.
type ColumnConfig struct {
	Name string
	Type Tag
	// Length is the declared width for var-length types (nchar/varchar/
	// varbinary); ignored for fixed-width types.
	Length int

	Generator GeneratorKind

	// Random generator parameters.
	Min          float64
	Max          float64
	ValuesList   []string
	ByteCorpus   []byte
	ZipfTheta    float64 // 0 disables skew; non-zero enables a Zipfian draw
	IntDistrib   bool    // not read by the random generator: integer vs. float draws follow Type

	// Order generator parameters.
	OrderMin int64
	OrderMax int64

	// Expression generator parameters.
	Formula string

	NullRatio float64
	IsPrimary bool
}

// TableSchema is an ordered column (or tag) list for one super table.
type TableSchema struct {
	SuperTableName string
	Columns        []ColumnConfig
	Tags           []ColumnConfig
}

// ColumnNames returns the ordered column names, excluding tags.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// TagNames returns the ordered tag names.
func (s *TableSchema) TagNames() []string {
	names := make([]string, len(s.Tags))
	for i, c := range s.Tags {
		names[i] = c.Name
	}
	return names
}

// Row is one generated record: a timestamp plus one cell per schema column,
// in schema order. Tags are not part of Row; they are attached per child
// table in the memory pool's tag registry.
type Row struct {
	Timestamp int64
	Columns   []Cell
}
