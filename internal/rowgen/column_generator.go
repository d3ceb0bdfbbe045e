// Package rowgen turns a table schema into a stream of rows: per-column
// value generators, a timestamp generator, and the row-production/disorder
// layer that feeds the data pipeline (spec §4.2, §4.3).
package rowgen

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"

	"github.com/taosdata/taosgen-sub001/internal/genutil"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// ColumnGenerator produces values for one schema column. GenerateOne and
// GenerateMany return an error when a value cannot be produced at all
// (e.g. an expression coercion that would silently truncate across
// unrelated categories); spec §4.2 requires such failures to surface rather
// than be masked as a null.
type ColumnGenerator interface {
	// GenerateOne produces a single cell.
	GenerateOne() (model.Cell, error)
	// GenerateMany fills n cells; the default implementation calls
	// GenerateOne n times, but generators may override it to fill more
	// efficiently column-by-column.
	GenerateMany(n int) ([]model.Cell, error)
}

func generateManyDefault(g ColumnGenerator, n int) ([]model.Cell, error) {
	out := make([]model.Cell, n)
	for i := range out {
		cell, err := g.GenerateOne()
		if err != nil {
			return nil, err
		}
		out[i] = cell
	}
	return out, nil
}

const defaultByteCorpus = "abcdefghijklmnopqrstuvwxyz"

// ncharRangeLo/ncharRangeHi bound the CJK codepoint range random nchar
// values are sampled from (spec §4.2 "Random generator").
const (
	ncharRangeLo = 0x4E00
	ncharRangeHi = 0x9FA5
)

// NewRandomGenerator builds the random generator for cfg, using rng as the
// column's private PRNG (spec requires a per-thread PRNG; callers give each
// goroutine its own rng instance). It returns an error for configurations
// random generation cannot support (e.g. a values-list that can't convert to
// the column's type).
func NewRandomGenerator(cfg model.ColumnConfig, rng *rand.Rand) (ColumnGenerator, error) {
	g := &RandomGenerator{cfg: cfg, rng: rng}
	if len(cfg.ValuesList) > 0 {
		return newValuesGenerator(cfg, rng)
	}
	if cfg.ZipfTheta > 0 && !cfg.Type.IsVarLength() {
		zipf, err := genutil.NewZipfGenerator(rng, 0, uint64(math.Max(1, cfg.Max-cfg.Min)), cfg.ZipfTheta)
		if err != nil {
			return nil, errors.Wrap(err, "rowgen: constructing zipf skew")
		}
		g.zipf = zipf
	}
	return g, nil
}

// RandomGenerator draws independent, identically distributed values per
// spec §4.2 "Random generator": uniform over [min, max) by default, or
// Zipf-skewed over the same range when ZipfTheta is configured.
type RandomGenerator struct {
	cfg  model.ColumnConfig
	rng  *rand.Rand
	zipf *genutil.ZipfGenerator
}

func (g *RandomGenerator) draw01() float64 {
	if g.zipf == nil {
		return g.rng.Float64()
	}
	span := g.cfg.Max - g.cfg.Min
	if span <= 0 {
		return 0
	}
	return math.Mod(float64(g.zipf.Uint64()), span) / span
}

// GenerateOne implements ColumnGenerator.
func (g *RandomGenerator) GenerateOne() (model.Cell, error) {
	switch g.cfg.Type {
	case model.TagBool:
		return model.Cell{Tag: model.TagBool, Bool: g.rng.Float64() < 0.5}, nil
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64,
		model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return model.Cell{Tag: g.cfg.Type, I64: g.uniformInt()}, nil
	case model.TagFloat:
		return model.Cell{Tag: model.TagFloat, F32: float32(g.uniformFloat())}, nil
	case model.TagDouble:
		return model.Cell{Tag: model.TagDouble, F64: g.uniformFloat()}, nil
	case model.TagNchar:
		return model.Cell{Tag: model.TagNchar, NcharCodepoints: g.randomNchar()}, nil
	case model.TagVarchar, model.TagVarbinary:
		return model.Cell{Tag: g.cfg.Type, Bytes: g.randomBytes()}, nil
	default:
		return model.Cell{}, errors.Errorf("rowgen: random generation is not supported for column type %s", g.cfg.Type)
	}
}

func (g *RandomGenerator) uniformInt() int64 {
	lo, hi := int64(g.cfg.Min), int64(g.cfg.Max)
	if hi <= lo {
		return lo
	}
	span := hi - lo
	if g.zipf != nil {
		return lo + int64(g.zipf.Uint64())%span
	}
	return lo + int64(g.rng.Int63n(span))
}

func (g *RandomGenerator) uniformFloat() float64 {
	lo, hi := g.cfg.Min, g.cfg.Max
	if hi <= lo {
		return lo
	}
	return lo + g.draw01()*(hi-lo)
}

func (g *RandomGenerator) randomNchar() []uint16 {
	n := g.cfg.Length
	if n <= 0 {
		n = 1
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(ncharRangeLo + g.rng.Intn(ncharRangeHi-ncharRangeLo+1))
	}
	return out
}

func (g *RandomGenerator) randomBytes() []byte {
	n := g.cfg.Length
	if n <= 0 {
		n = 1
	}
	corpus := g.cfg.ByteCorpus
	if len(corpus) == 0 {
		corpus = []byte(defaultByteCorpus)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = corpus[g.rng.Intn(len(corpus))]
	}
	return out
}

// GenerateMany implements ColumnGenerator.
func (g *RandomGenerator) GenerateMany(n int) ([]model.Cell, error) { return generateManyDefault(g, n) }

// valuesGenerator samples uniformly from a pre-converted literal values list
// (spec §4.2: "pre-converted once to the target type").
type valuesGenerator struct {
	tag    model.Tag
	rng    *rand.Rand
	values []model.Cell
}

func newValuesGenerator(cfg model.ColumnConfig, rng *rand.Rand) (ColumnGenerator, error) {
	values := make([]model.Cell, len(cfg.ValuesList))
	for i, raw := range cfg.ValuesList {
		cell, err := convertLiteral(cfg.Type, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "rowgen: converting literal value %q for column", raw)
		}
		values[i] = cell
	}
	return &valuesGenerator{tag: cfg.Type, rng: rng, values: values}, nil
}

func (g *valuesGenerator) GenerateOne() (model.Cell, error) {
	if len(g.values) == 0 {
		return model.NullCell(g.tag), nil
	}
	return g.values[g.rng.Intn(len(g.values))], nil
}

func (g *valuesGenerator) GenerateMany(n int) ([]model.Cell, error) { return generateManyDefault(g, n) }

// OrderGenerator produces a monotonic counter over [min, max), wrapping to
// min on overflow (spec §4.2 "Order generator"). Construction rejects
// non-integer target types.
type OrderGenerator struct {
	tag      model.Tag
	min, max int64
	next     int64
}

// NewOrderGenerator builds an order generator for cfg. It returns an error
// if cfg.Type is not an integer tag.
func NewOrderGenerator(cfg model.ColumnConfig) (*OrderGenerator, error) {
	switch cfg.Type {
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64,
		model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
	default:
		return nil, errors.Errorf("rowgen: order generator requires an integer type, got %s", cfg.Type)
	}
	min, max := cfg.OrderMin, cfg.OrderMax
	if max <= min {
		return nil, errors.Errorf("rowgen: order generator requires order_max > order_min (got %d, %d)", min, max)
	}
	return &OrderGenerator{tag: cfg.Type, min: min, max: max, next: min}, nil
}

// GenerateOne implements ColumnGenerator.
func (g *OrderGenerator) GenerateOne() (model.Cell, error) {
	v := g.next
	g.next++
	if g.next >= g.max {
		g.next = g.min
	}
	return model.Cell{Tag: g.tag, I64: v}, nil
}

// GenerateMany implements ColumnGenerator, producing count consecutive
// values in a single pass (spec §4.2: "Produces count consecutive values
// across generate_many(count)").
func (g *OrderGenerator) GenerateMany(count int) ([]model.Cell, error) {
	out := make([]model.Cell, count)
	for i := range out {
		cell, _ := g.GenerateOne()
		out[i] = cell
	}
	return out, nil
}

// Reset returns the counter to min.
func (g *OrderGenerator) Reset() { g.next = g.min }

func convertLiteral(tag model.Tag, raw string) (model.Cell, error) {
	switch tag {
	case model.TagVarchar, model.TagVarbinary:
		return model.Cell{Tag: tag, Bytes: []byte(raw)}, nil
	case model.TagNchar:
		return model.Cell{Tag: tag, NcharCodepoints: utf8ToUTF16(raw)}, nil
	case model.TagBool:
		return model.Cell{Tag: tag, Bool: raw == "true" || raw == "1"}, nil
	default:
		f, err := parseFloat(raw)
		if err != nil {
			return model.Cell{}, err
		}
		return numericCellFromFloat(tag, f)
	}
}
