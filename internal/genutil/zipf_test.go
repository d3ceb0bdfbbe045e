package genutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestZipfGeneratorStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	z, err := NewZipfGenerator(rng, 0, 999, 0.99)
	require.NoError(t, err)

	counts := make(map[uint64]int)
	for i := 0; i < 10000; i++ {
		v := z.Uint64()
		require.GreaterOrEqual(t, v, uint64(0))
		require.LessOrEqual(t, v, uint64(999))
		counts[v]++
	}
	// Zipfian skew means the head value should dominate a flat distribution.
	require.Greater(t, counts[0], 100)
}

func TestZipfGeneratorRejectsBadTheta(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewZipfGenerator(rng, 0, 10, 1.0)
	require.Error(t, err)

	_, err = NewZipfGenerator(rng, 0, 10, -0.1)
	require.Error(t, err)
}

func TestZipfGeneratorRejectsInvertedRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewZipfGenerator(rng, 10, 5, 0.5)
	require.Error(t, err)
}

func TestZipfGeneratorIncrementIMax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	z, err := NewZipfGenerator(rng, 0, 99, 0.99)
	require.NoError(t, err)

	require.NoError(t, z.IncrementIMax(100))

	for i := 0; i < 1000; i++ {
		v := z.Uint64()
		require.LessOrEqual(t, v, uint64(199))
	}
}
