package mc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// noDraw fails the test if the engine consumes randomness.
type noDraw struct{ t *testing.T }

func (n noDraw) Uniform() float64 {
	n.t.Fatal("unexpected uniform draw")
	return 0
}

func (n noDraw) RangeInt(lo, _ int) int {
	n.t.Fatal("unexpected range draw")
	return lo
}

func (n noDraw) Gaussian() float64 {
	n.t.Fatal("unexpected gaussian draw")
	return 0
}

func TestImprovingMovesAlwaysAccepted(t *testing.T) {
	m := New(1.0, noDraw{t})
	p := pose.FromSequence("AAA")
	src := random.New(3)
	for i := 0; i < 500; i++ {
		old := src.Uniform()*100 - 50
		improvement := src.Uniform() * 10
		if i%10 == 0 {
			improvement = 0
		}
		require.True(t, m.Evaluate(old, old-improvement, p))
	}
	assert.Equal(t, 500, m.Stats().Accepted)
	assert.Equal(t, 0, m.Stats().Rejected)
}

func TestAcceptanceFrequencyMatchesBoltzmann(t *testing.T) {
	const trials = 20000
	for _, tc := range []struct{ temp, delta float64 }{{1, 0.5}, {2, 3}, {0.5, 0.25}} {
		m := New(tc.temp, random.New(11))
		p := pose.FromSequence("A")
		accepted := 0
		for i := 0; i < trials; i++ {
			if m.Evaluate(0, tc.delta, p) {
				accepted++
			}
		}
		want := math.Exp(-tc.delta / tc.temp)
		assert.InDelta(t, want, float64(accepted)/trials, 0.015, "temp=%v delta=%v", tc.temp, tc.delta)
		assert.InDelta(t, want, m.AcceptProbability(0, tc.delta), 1e-12)
	}
}

func TestBestScoreMonotone(t *testing.T) {
	m := New(5, random.New(5))
	src := random.New(6)
	p := pose.FromSequence("AAAA")
	current := 0.0
	m.Reset(p, current)
	prevBest := m.BestScore()
	for i := 0; i < 2000; i++ {
		next := current + src.Gaussian()*3
		if m.Evaluate(current, next, p) {
			current = next
		}
		assert.LessOrEqual(t, m.BestScore(), prevBest)
		assert.LessOrEqual(t, m.BestScore(), current)
		prevBest = m.BestScore()
	}
}

func TestDegenerateTemperatureRejectsWorseningMoves(t *testing.T) {
	for _, temp := range []float64{0, -1} {
		m := New(temp, noDraw{t})
		p := pose.FromSequence("A")
		assert.False(t, m.Evaluate(1, 1.0001, p))
		assert.True(t, m.Evaluate(1, 1, p))
		assert.True(t, m.Evaluate(1, 0.5, p))
		assert.Equal(t, 0.0, m.AcceptProbability(0, 1))
		assert.Equal(t, 1, m.Stats().Rejected)
	}
}

func TestRecoverLowWithoutBestIsNoop(t *testing.T) {
	m := New(1, random.New(1))
	p := pose.FromSequence("AC")
	before := p.Fingerprint()
	assert.False(t, m.RecoverLow(p))
	assert.Equal(t, before, p.Fingerprint())
	assert.Nil(t, m.Best())
}

func TestBestIsIndependentClone(t *testing.T) {
	m := New(1, random.New(1))
	candidate := pose.FromSequence("AAA")
	candidate.SetPhi(2, -60)
	require.True(t, m.Evaluate(0, -1, candidate))

	candidate.SetPhi(2, 90)
	live := pose.FromSequence("AAA")
	require.True(t, m.RecoverLow(live))
	assert.InDelta(t, -60, live.Phi(2), 1e-9)
	assert.InDelta(t, -1, m.BestScore(), 1e-12)
}

func TestResetAndMoveCounters(t *testing.T) {
	m := New(1, random.New(2))
	start := pose.FromSequence("AA")
	m.Reset(start, 10)
	assert.Equal(t, 10.0, m.BestScore())

	m.EvaluateMove("small", 10, 9, start)
	m.EvaluateMove("small", 9, 8, start)
	m.EvaluateMove("big", 8, 8, start)

	counters := m.MoveCounters()
	require.Len(t, counters, 2)
	assert.Equal(t, "big", counters[0].Move)
	assert.Equal(t, 2, counters[1].Accepted)
	assert.InDelta(t, -2, counters[1].SumDelta, 1e-12)
	assert.InDelta(t, 1.0, m.Stats().AcceptRate(), 1e-12)
	assert.NotPanics(t, m.ShowCounters)
}
