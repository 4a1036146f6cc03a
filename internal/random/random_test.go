package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamReproducible(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uniform(), b.Uniform())
		assert.Equal(t, a.RangeInt(1, 10), b.RangeInt(1, 10))
		assert.Equal(t, a.Gaussian(), b.Gaussian())
	}
}

func TestRangeIntInclusive(t *testing.T) {
	s := New(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := s.RangeInt(3, 5)
		assert.GreaterOrEqual(t, v, 3)
		assert.LessOrEqual(t, v, 5)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 4, s.RangeInt(4, 4))
}

func TestSymmetricBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 1000; i++ {
		v := Symmetric(s, 60)
		assert.GreaterOrEqual(t, v, -60.0)
		assert.Less(t, v, 60.0)
	}
}
