package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

const dieSides = 6

// Roller produces fair three-dice rounds. It is deterministic for a given
// seed, which keeps simulations reproducible.
type Roller struct {
	rng  *rand.Rand
	next int64
}

func NewRoller(seed int64, firstSession int64) *Roller {
	if firstSession <= 0 {
		firstSession = 1
	}
	return &Roller{
		rng:  rand.New(rand.NewSource(seed)),
		next: firstSession,
	}
}

// Roll draws the next round.
func (r *Roller) Roll() Session {
	dice := [3]int{rollDie(r.rng), rollDie(r.rng), rollDie(r.rng)}
	s := NewSession(r.next, dice)
	r.next++
	return s
}

// RollN draws n consecutive rounds.
func (r *Roller) RollN(n int) []Session {
	out := make([]Session, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, r.Roll())
	}
	return out
}

func rollDie(rng *rand.Rand) int {
	return rng.Intn(dieSides) + 1
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
