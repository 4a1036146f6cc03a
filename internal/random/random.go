// Package random provides the single shared random stream of a search run.
package random

import (
	"math/rand"
	"sync"
)

// Source is the random stream handed to perturbation operators, the
// acceptance engine and the builders. Every draw of one run goes through the
// same Source so a fixed seed reproduces the whole trajectory.
type Source interface {
	// Uniform returns a value in [0, 1).
	Uniform() float64
	// RangeInt returns an integer in [lo, hi], both inclusive.
	RangeInt(lo, hi int) int
	// Gaussian returns a standard normal deviate.
	Gaussian() float64
}

// Stream is a mutex-guarded math/rand stream.
type Stream struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(seed int64) *Stream {
	return &Stream{rng: rand.New(rand.NewSource(seed))}
}

// FromRand wraps an existing generator; the caller must not draw from it
// directly afterwards.
func FromRand(r *rand.Rand) *Stream {
	return &Stream{rng: r}
}

func (s *Stream) Uniform() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Stream) RangeInt(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Stream) Gaussian() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.NormFloat64()
}

// Symmetric returns a value uniformly drawn from [-width, width).
func Symmetric(src Source, width float64) float64 {
	return (2*src.Uniform() - 1) * width
}
