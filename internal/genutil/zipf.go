// Package genutil holds small, reusable numeric generators shared by the
// column generators in internal/rowgen: Zipfian skew, and (via the rowgen
// package) uniform draws.
package genutil

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// Implements the Incrementing Zipfian Random Number Generator from
// "Quickly Generating Billion-Record Synthetic Databases" (Gray, Sundaresan,
// Englert, Baclawski, Weinberger; SIGMOD 1994), used to give a random column
// generator an optional long-tailed skew instead of a flat uniform draw
// (spec §6.1 "Random generator", zipf_theta).
const (
	defaultIMax  = 10000000000
	defaultTheta = 0.99
	defaultZetaN = 26.46902820178302
)

// ZipfGenerator draws skewed integers in [iMin, iMax] according to a Zipf
// distribution parameterized by theta. Unlike math/rand's Zipf, it supports
// incrementing iMax without a full recomputation, and accepts any theta >= 0
// except 1.
type ZipfGenerator struct {
	mu    sync.Mutex
	r     *rand.Rand
	iMax  uint64
	eta   float64
	zetaN float64

	theta float64
	iMin  uint64

	alpha, zeta2, halfPowTheta float64
}

// NewZipfGenerator constructs a generator drawing from [iMin, iMax] with the
// given skew parameter theta (0 disables skew asymptotically but theta must
// not equal exactly 1, per the algorithm's constraint).
func NewZipfGenerator(rng *rand.Rand, iMin, iMax uint64, theta float64) (*ZipfGenerator, error) {
	if iMin > iMax {
		return nil, errors.Errorf("genutil: iMin %d > iMax %d", iMin, iMax)
	}
	if theta < 0.0 || theta == 1.0 {
		return nil, errors.Errorf("genutil: theta must satisfy 0 <= theta, theta != 1")
	}

	z := &ZipfGenerator{
		iMin:  iMin,
		r:     rng,
		iMax:  iMax,
		theta: theta,
	}

	zeta2, err := computeZetaFromScratch(2, theta)
	if err != nil {
		return nil, errors.Wrap(err, "genutil: computing zeta(2,theta)")
	}
	zetaN, err := computeZetaFromScratch(iMax+1-iMin, theta)
	if err != nil {
		return nil, errors.Wrapf(err, "genutil: computing zeta(%d,theta)", iMax)
	}
	z.alpha = 1.0 / (1.0 - theta)
	z.eta = (1 - math.Pow(2.0/float64(z.iMax+1-z.iMin), 1.0-theta)) / (1.0 - zeta2/zetaN)
	z.zetaN = zetaN
	z.zeta2 = zeta2
	z.halfPowTheta = 1.0 + math.Pow(0.5, theta)
	return z, nil
}

func computeZetaIncrementally(oldIMax, iMax uint64, theta, sum float64) (float64, error) {
	if iMax < oldIMax {
		return 0, errors.New("genutil: cannot increment iMax backwards")
	}
	for i := oldIMax + 1; i <= iMax; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum, nil
}

func computeZetaFromScratch(n uint64, theta float64) (float64, error) {
	if n == defaultIMax && theta == defaultTheta {
		return defaultZetaN, nil
	}
	return computeZetaIncrementally(0, n, theta, 0.0)
}

// Uint64 draws a new skewed value in [iMin, iMax].
func (z *ZipfGenerator) Uint64() uint64 {
	z.mu.Lock()
	defer z.mu.Unlock()

	u := z.r.Float64()
	uz := u * z.zetaN
	if uz < 1.0 {
		return z.iMin
	}
	if uz < z.halfPowTheta {
		return z.iMin + 1
	}
	spread := float64(z.iMax + 1 - z.iMin)
	return z.iMin + uint64(int64(spread*math.Pow(z.eta*u-z.eta+1.0, z.alpha)))
}

// IncrementIMax extends the generator's range by count without a full
// recomputation of its hidden parameters. Nothing outside its own test
// calls it; the random generator's range is fixed at construction.
func (z *ZipfGenerator) IncrementIMax(count uint64) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	zetaN, err := computeZetaIncrementally(z.iMax+1-z.iMin, z.iMax+count+1-z.iMin, z.theta, z.zetaN)
	if err != nil {
		return errors.Wrap(err, "genutil: incrementally computing zeta")
	}
	z.iMax += count
	z.eta = (1 - math.Pow(2.0/float64(z.iMax+1-z.iMin), 1.0-z.theta)) / (1.0 - z.zeta2/zetaN)
	z.zetaN = zetaN
	return nil
}
