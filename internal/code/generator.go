// Package code issues the 6-character session codes players rendezvous on.
package code

import (
	"context"
	"math/rand"
	"time"

	"retroquiz-service/internal/domain"
)

// MaxAttempts bounds how many candidate codes Allocate tries before giving
// up. Exhaustion is a hard failure: silently lengthening or reusing a code
// would break the fixed-width contract clients validate against.
const MaxAttempts = 10

// TakenFunc reports whether a candidate code is already held by a non-closed
// session.
type TakenFunc func(ctx context.Context, code string) (bool, error)

// Generator produces session codes drawn uniformly from the code alphabet.
type Generator struct {
	rnd *rand.Rand
}

func New() *Generator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource allows deterministic codes in tests.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Generate returns one 6-character candidate code. Intn keeps the draw
// unbiased across the 36-symbol alphabet.
func (g *Generator) Generate() string {
	buf := make([]byte, domain.CodeLength)
	for i := range buf {
		buf[i] = domain.CodeAlphabet[g.rnd.Intn(len(domain.CodeAlphabet))]
	}
	return string(buf)
}

// Allocate generates candidates until one is unused, retrying up to
// MaxAttempts before returning domain.ErrCodeExhausted.
func (g *Generator) Allocate(ctx context.Context, taken TakenFunc) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		candidate := g.Generate()
		exists, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", domain.ErrCodeExhausted
}
