package score

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsearch/internal/pose"
)

func TestRamaPrefersBasins(t *testing.T) {
	helix := RamaEnergy("A", -63, -43)
	off := RamaEnergy("A", 120, -120)
	assert.InDelta(t, 0, helix, 1e-9)
	assert.Greater(t, off, helix)

	// glycine has a left-handed basin as deep as the right-handed one
	assert.InDelta(t, RamaEnergy("G", -63, -43), RamaEnergy("G", 63, 43), 1e-9)
}

func TestWeightedScoreIsPure(t *testing.T) {
	p := pose.FromSequence("ACDEFGHIK")
	before := p.Fingerprint()
	fn := Default()

	a, err := fn.Score(context.Background(), p)
	require.NoError(t, err)
	b, err := fn.Score(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, before, p.Fingerprint())
}

func TestWeightedScoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Default().Score(ctx, pose.FromSequence("AA"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSetWeightAndBreakdown(t *testing.T) {
	w := Default().Clone()
	w.Reset()
	w.SetWeight(Rama{}, 2)
	w.SetWeight(Rama{}, 3)
	require.Len(t, w.Terms, 1)

	p := pose.FromSequence("AAA")
	total, err := w.Score(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, total, w.Breakdown(p)["rama"], 1e-9)
}

func TestCaptureRestraintsZeroAtCapture(t *testing.T) {
	p := pose.FromSequence("AAAAAAAAAA")
	r := CaptureRestraints(p, 4, 6, 1)
	require.NotEmpty(t, r.Pairs)
	assert.InDelta(t, 0, r.Evaluate(p), 1e-9)

	p.SetPsi(5, -47)
	assert.Greater(t, r.Evaluate(p), 0.0)
}

func TestFromName(t *testing.T) {
	_, err := FromName("default")
	require.NoError(t, err)
	_, err = FromName("nope")
	require.Error(t, err)
}
