package rowgen

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// NewColumnGenerator dispatches on cfg.Generator to build the concrete
// generator for one schema column, using rng as its private PRNG (random
// generators only; order and expression generators are deterministic).
func NewColumnGenerator(cfg model.ColumnConfig, rng *rand.Rand) (ColumnGenerator, error) {
	switch cfg.Generator {
	case model.GenRandom:
		return NewRandomGenerator(cfg, rng)
	case model.GenOrder:
		return NewOrderGenerator(cfg)
	case model.GenExpression:
		return NewExpressionGenerator(cfg)
	default:
		return nil, errors.Errorf("rowgen: unrecognized generator kind %d for column %q", cfg.Generator, cfg.Name)
	}
}

// NewRowGeneratorFromSchema builds a full RowGenerator for columns, each
// seeded from its own independent rng draw off seedRng so every column gets
// a distinct private PRNG stream (spec §4.2 "per-thread PRNG").
func NewRowGeneratorFromSchema(
	ts *TimestampGenerator, columns []model.ColumnConfig, seedRng *rand.Rand,
) (*RowGenerator, error) {
	gens := make([]ColumnGenerator, len(columns))
	for i, col := range columns {
		colRng := rand.New(rand.NewSource(seedRng.Uint64()))
		gen, err := NewColumnGenerator(col, colRng)
		if err != nil {
			return nil, errors.Wrapf(err, "rowgen: building generator for column %q", col.Name)
		}
		gens[i] = gen
	}
	return NewRowGenerator(ts, gens), nil
}
