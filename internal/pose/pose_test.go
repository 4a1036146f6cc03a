package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTorsionIndexOutOfRange(t *testing.T) {
	p := FromSequence("ACDE")

	_, err := p.Torsion(0, Phi)
	require.ErrorIs(t, err, ErrResidueIndex)
	_, err = p.Torsion(5, Psi)
	require.ErrorIs(t, err, ErrResidueIndex)
	require.ErrorIs(t, p.SetTorsion(5, Phi, 10), ErrResidueIndex)

	assert.Panics(t, func() { p.Phi(0) })
	assert.Panics(t, func() { p.SetPsi(9, 1) })
}

func TestSetTorsionNormalizes(t *testing.T) {
	p := FromSequence("AAA")
	p.SetPhi(2, 190)
	assert.InDelta(t, -170, p.Phi(2), 1e-9)
	p.SetPsi(2, -540)
	assert.InDelta(t, 180, p.Psi(2), 1e-9)
}

func TestCloneDoesNotAlias(t *testing.T) {
	p := FromSequence("ACDC")
	require.NoError(t, p.SetChi(2, []float64{60, -60}))
	c := p.Clone()

	p.SetPhi(1, -60)
	require.NoError(t, p.SetChi(2, []float64{180}))

	assert.InDelta(t, ExtendedPhi, c.Phi(1), 1e-9)
	assert.Equal(t, []float64{60, -60}, c.Chi(2))
	assert.False(t, p.Equal(c))
}

func TestCoordsFollowTorsions(t *testing.T) {
	p := FromSequence("AAAAAA")
	before := p.Coords()
	require.Len(t, before, 6)
	for i := 1; i < len(before); i++ {
		assert.InDelta(t, CADistance, Distance(before[i-1], before[i]), 1e-6)
	}

	p.SetPsi(3, -47)
	p.SetPhi(4, -57)
	after := p.Coords()
	assert.NotEqual(t, before[5], after[5])
	assert.Equal(t, after[5], p.CA(6))
}

func TestSecstructAndABEGO(t *testing.T) {
	p := New([]Residue{
		{Name1: "A", Phi: -57, Psi: -47},
		{Name1: "A", Phi: -120, Psi: 130},
		{Name1: "G", Phi: 80, Psi: 10},
		{Name1: "G", Phi: 80, Psi: 170},
		{Name1: "X", Ligand: true},
	})
	assert.Equal(t, "HELLL", p.Secstruct())
	assert.Equal(t, "ABGEX", p.ABEGO())
}

func TestReplaceSegmentChangesSize(t *testing.T) {
	p := FromSequence("ACDEF")
	err := p.ReplaceSegment(2, 3, []Residue{{Name1: "V"}, {Name1: "V"}, {Name1: "V"}})
	require.NoError(t, err)
	assert.Equal(t, "AVVVEF", p.Sequence())
	assert.Equal(t, 6, len(p.Coords()))

	require.ErrorIs(t, p.ReplaceSegment(0, 2, nil), ErrResidueIndex)
	require.Error(t, p.ReplaceSegment(4, 2, nil))
}

func TestDetectDisulfides(t *testing.T) {
	p := New([]Residue{
		{Name1: "C", Phi: -57, Psi: -47},
		{Name1: "A", Phi: -57, Psi: -47},
		{Name1: "A", Phi: -57, Psi: -47},
		{Name1: "A", Phi: -57, Psi: -47},
		{Name1: "C", Phi: -57, Psi: -47},
	})
	bonds := p.DetectDisulfides()
	for _, b := range bonds {
		d := Distance(p.CA(b[0]), p.CA(b[1]))
		assert.LessOrEqual(t, d, disulfideCut)
		assert.Equal(t, "C", p.Name1(b[0]))
		assert.Equal(t, "C", p.Name1(b[1]))
	}

	extended := FromSequence("CAAAAAAAAC")
	assert.Empty(t, extended.DetectDisulfides())
}

func TestCodecRoundTrip(t *testing.T) {
	p := New([]Residue{{Name1: "A", Phi: -60, Psi: -40, Chi: []float64{65}}, {Name1: "G"}})
	data, err := Encode(p)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, p.Equal(out))
	assert.Equal(t, p.Fingerprint(), out.Fingerprint())

	_, err = FromRecord(Record{SchemaVersion: 99, CodecVersion: 1})
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestCodecKeepsCisOmega(t *testing.T) {
	p := FromSequence("AAPA")
	require.NoError(t, p.SetOmega(3, 0))

	data, err := Encode(p)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)

	assert.InDelta(t, 0, out.Omega(3), 1e-9)
	assert.InDelta(t, TransOmega, out.Omega(2), 1e-9)
	assert.True(t, p.Equal(out))
	assert.Equal(t, p.Fingerprint(), out.Fingerprint())
}

func TestDecodeDefaultsAbsentOmegaToTrans(t *testing.T) {
	data := []byte(`{"schema_version":1,"codec_version":1,"residues":[{"name1":"A","phi":-60,"psi":-40},{"name1":"P","phi":-70,"psi":150,"omega":0}]}`)
	out, err := Decode(data)
	require.NoError(t, err)

	assert.InDelta(t, TransOmega, out.Omega(1), 1e-9)
	assert.InDelta(t, 0, out.Omega(2), 1e-9)
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[float64]float64{0: 0, 180: 180, -180: 180, 181: -179, 360: 0, -721: -1}
	for in, want := range cases {
		assert.InDelta(t, want, NormalizeAngle(in), 1e-9, "input %v", in)
	}
	assert.False(t, math.IsNaN(NormalizeAngle(1e9)))
}
