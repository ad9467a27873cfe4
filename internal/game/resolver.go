package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/desk-utils-lab/internal/logging"
	"github.com/google/uuid"
)

// Round records one resolved game.
type Round struct {
	ID       string
	Player   Choice
	Computer Choice
	Outcome  Outcome
}

// Resolver draws the computer's choice from a seedable PRNG. It is safe for
// concurrent use.
type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// NewResolver returns a resolver whose draws are fully determined by seed.
func NewResolver(seed uint64) *Resolver {
	return &Resolver{rng: newRand(seed)}
}

// NewRandomResolver seeds a resolver from crypto/rand.
func NewRandomResolver() (*Resolver, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewResolver(seed), nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Reseed restarts the draw sequence from seed.
func (r *Resolver) Reseed(seed uint64) {
	r.mu.Lock()
	r.rng = newRand(seed)
	r.mu.Unlock()
}

func (r *Resolver) draw() Choice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Choices[r.rng.IntN(len(Choices))]
}

// Resolve plays player against a random computer choice.
func (r *Resolver) Resolve(player Choice) Outcome {
	return r.Play(player).Outcome
}

// Play resolves a round and returns both choices alongside the outcome.
func (r *Resolver) Play(player Choice) Round {
	computer := r.draw()
	round := Round{
		ID:       uuid.NewString(),
		Player:   player,
		Computer: computer,
		Outcome:  Decide(player, computer),
	}
	logging.Debugw("game: round resolved", logging.RoundFields(round.ID, player.String(), computer.String(), round.Outcome.String())...)
	return round
}
