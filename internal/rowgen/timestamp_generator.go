package rowgen

import "github.com/cockroachdb/errors"

// Precision selects the unit of a TimestampGenerator's clock.
type Precision int

// Recognized timestamp precisions (spec §4.2 "Timestamp generator").
const (
	PrecisionMillis Precision = iota
	PrecisionMicros
	PrecisionNanos
)

// TimestampGenerator produces a strictly increasing sequence
// t0, t0+step, t0+2*step, ... (spec §4.2).
type TimestampGenerator struct {
	start     int64
	step      int64
	precision Precision

	next int64
}

// NewTimestampGenerator builds a generator starting at start and advancing
// by step each call. step must be positive to keep the sequence strictly
// increasing.
func NewTimestampGenerator(start, step int64, precision Precision) (*TimestampGenerator, error) {
	if step <= 0 {
		return nil, errors.Errorf("rowgen: timestamp step must be positive, got %d", step)
	}
	return &TimestampGenerator{start: start, step: step, precision: precision, next: start}, nil
}

// Precision returns the generator's configured unit.
func (g *TimestampGenerator) Precision() Precision { return g.precision }

// Next returns the next timestamp in the sequence and advances it.
func (g *TimestampGenerator) Next() int64 {
	v := g.next
	g.next += g.step
	return v
}

// NextMany returns n consecutive timestamps.
func (g *TimestampGenerator) NextMany(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Reset returns the generator's state to its starting timestamp.
func (g *TimestampGenerator) Reset() { g.next = g.start }
