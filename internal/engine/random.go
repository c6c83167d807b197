package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
)

// Random is the single source of randomness for a combat: attack spread, crit,
// opponent choice, escape and item-drop rolls all draw from it in a fixed order,
// so a seeded provider reproduces a whole fight.
type Random interface {
	Float64() float64
}

// NewRandom returns a deterministic provider for the given seed.
func NewRandom(seed int64) Random { return rand.New(rand.NewSource(seed)) }

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func newRNG() Random {
	seed, err := NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return NewRandom(seed)
}
