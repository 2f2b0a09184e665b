package rand

import (
	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
	xrand "golang.org/x/exp/rand"
)

const batchSize = 1024

// A Generator pre-generates batches of random numbers from a 64-bit Mersenne
// twister. It satisfies the golang.org/x/exp/rand Source interface, so it can
// be handed to gonum distributions directly. A Generator is not safe for
// concurrent use: give every chain its own.
type Generator struct {
	mt    *mt19937.MT19937
	batch []uint64
	pos   int
}

var _ xrand.Source = (*Generator)(nil)

// NewGenerator creates a generator based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)
	return newGenerator(r), nil
}

// NewGeneratorSlice creates a generator using the reference init_by_array
// seeding, so output can be compared against the canonical MT19937-64 test
// vectors.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("Seed key must have at least one value")
	}
	r := mt19937.New()
	r.SeedFromSlice(key)
	return newGenerator(r), nil
}

func newGenerator(r *mt19937.MT19937) *Generator {
	return &Generator{
		mt:    r,
		batch: make([]uint64, batchSize),
		pos:   batchSize,
	}
}

func (g *Generator) fill() {
	for i := range g.batch {
		g.batch[i] = g.mt.Uint64()
	}
	g.pos = 0
}

// Uint64 returns the next pseudo-random 64-bit value
func (g *Generator) Uint64() uint64 {
	if g.pos >= len(g.batch) {
		g.fill()
	}
	v := g.batch[g.pos]
	g.pos++
	return v
}

// Seed resets the generator and discards any pre-generated values
func (g *Generator) Seed(seed uint64) {
	g.mt.Seed(int64(seed))
	g.pos = len(g.batch)
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() & 0x7fffffffffffffff)
}

// Float64 returns a value in [0, 1) using the top 53 bits
func (g *Generator) Float64() float64 {
	return float64(g.Uint64()>>11) / (1 << 53)
}
