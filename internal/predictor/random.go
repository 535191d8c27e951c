package predictor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// RandomSource supplies the coin flip used when there is no history at all.
type RandomSource interface {
	Float64() float64
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// NewRandom returns a goroutine-safe source seeded with seed.
func NewRandom(seed int64) RandomSource {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func defaultRandom() RandomSource {
	seed, err := game.NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return NewRandom(seed)
}

// FixedRandom always returns the same value.
type FixedRandom float64

func (f FixedRandom) Float64() float64 { return float64(f) }
