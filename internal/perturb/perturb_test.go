package perturb

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsearch/internal/pose"
	"confsearch/internal/random"
	"confsearch/internal/score"
)

func changedResidues(before, after *pose.Pose) []int {
	var out []int
	for i := 1; i <= before.Size(); i++ {
		if before.Phi(i) != after.Phi(i) || before.Psi(i) != after.Psi(i) {
			out = append(out, i)
		}
	}
	return out
}

func TestSingleTorsionChangesOneTorsion(t *testing.T) {
	ctx := context.Background()
	rng := random.New(9)
	op := SingleTorsion{Lo: 1, Hi: 180}
	for i := 0; i < 200; i++ {
		p := pose.FromSequence("ACDEFGHIKL")
		before := p.Clone()
		d, err := op.Apply(ctx, p, rng)
		require.NoError(t, err)
		require.Len(t, d.Residues, 1)
		require.Equal(t, Success, d.Status)

		res := d.Residues[0]
		assert.GreaterOrEqual(t, res, 1)
		assert.LessOrEqual(t, res, 10)
		assert.GreaterOrEqual(t, d.Offsets[0], 1.0)
		assert.Less(t, d.Offsets[0], 180.0)

		kind := pose.Phi
		if d.Detail == "psi" {
			kind = pose.Psi
		}
		want := pose.NormalizeAngle(mustTorsion(t, before, res, kind) + d.Offsets[0])
		assert.InDelta(t, want, mustTorsion(t, p, res, kind), 1e-9)
		assert.Equal(t, []int{res}, changedResidues(before, p))
	}
}

func mustTorsion(t *testing.T, p *pose.Pose, i int, k pose.TorsionKind) float64 {
	t.Helper()
	v, err := p.Torsion(i, k)
	require.NoError(t, err)
	return v
}

func TestSingleTorsionRejectsEmptyPose(t *testing.T) {
	_, err := Symmetric(10).Apply(context.Background(), pose.New(nil), random.New(1))
	require.Error(t, err)
}

func TestWindowClamps(t *testing.T) {
	lo, hi := Window(2, 7, 1, 10)
	assert.Equal(t, []int{1, 5}, []int{lo, hi})
	lo, hi = Window(9, 7, 2, 10)
	assert.Equal(t, []int{3, 10}, []int{lo, hi})
	lo, hi = Window(5, 0, 3, 10)
	assert.Equal(t, []int{1, 10}, []int{lo, hi})
	lo, hi = Window(5, 1, 1, 10)
	assert.Equal(t, []int{5, 5}, []int{lo, hi})
	lo, hi = Window(5, 3, -4, 10)
	assert.Equal(t, []int{5, 5}, []int{lo, hi})
}

func TestHierarchicalLocalWindow(t *testing.T) {
	ctx := context.Background()
	rng := random.New(4)
	h := &Hierarchical{MaxDelta: 30, Local: 5, Level: 1}
	for i := 0; i < 50; i++ {
		p := pose.FromSequence("AAAAAAAAAAAAAAAAAAAA")
		before := p.Clone()
		d, err := h.Apply(ctx, p, rng)
		require.NoError(t, err)

		anchor := h.Anchor()
		for _, r := range d.Residues {
			assert.LessOrEqual(t, int(math.Abs(float64(r-anchor))), 2)
		}
		for _, r := range changedResidues(before, p) {
			assert.Contains(t, d.Residues, r)
		}
	}
}

func TestHierarchicalDeeperLevelReusesAnchor(t *testing.T) {
	ctx := context.Background()
	rng := random.New(8)
	h := &Hierarchical{MaxDelta: 10, Local: 3, Level: 1}
	p := pose.FromSequence("AAAAAAAAAAAAAAA")
	_, err := h.Apply(ctx, p, rng)
	require.NoError(t, err)
	anchor := h.Anchor()

	h.SetLevel(4)
	d, err := h.Apply(ctx, p, rng)
	require.NoError(t, err)
	assert.Equal(t, anchor, h.Anchor())
	lo, hi := Window(anchor, 3, 4, p.Size())
	assert.Equal(t, hi-lo+1, len(d.Residues))
}

func TestHierarchicalZeroLocalityPerturbsAll(t *testing.T) {
	p := pose.New([]pose.Residue{{Name1: "A"}, {Name1: "G"}, {Name1: "X", Ligand: true}, {Name1: "A"}})
	h := &Hierarchical{MaxDelta: 20, RamaBiased: true}
	d, err := h.Apply(context.Background(), p, random.New(2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, d.Residues)
}

func TestHierarchicalRamaBiasedMirrorsDResidues(t *testing.T) {
	sampler := fixedSampler{phi: -60, psi: -40}
	p := pose.New([]pose.Residue{{Name1: "A", DAmino: true}, {Name1: "A"}})
	h := &Hierarchical{RamaBiased: true, Sampler: sampler}
	_, err := h.Apply(context.Background(), p, random.New(1))
	require.NoError(t, err)
	assert.InDelta(t, 60, p.Phi(1), 1e-9)
	assert.InDelta(t, 40, p.Psi(1), 1e-9)
	assert.InDelta(t, -60, p.Phi(2), 1e-9)
}

type fixedSampler struct{ phi, psi float64 }

func (f fixedSampler) Sample(string, random.Source) (float64, float64) { return f.phi, f.psi }

func TestPivotCoupledKeepsFlanksRestrained(t *testing.T) {
	ctx := context.Background()
	rng := random.New(21)
	op := DefaultPivotCoupled()
	p := pose.FromSequence("AAAAAAAAAAAAAAAAAAAAAAAA")
	d, err := op.Apply(ctx, p, rng)
	require.NoError(t, err)
	require.Len(t, d.Residues, 2)
	assert.InDelta(t, -d.Offsets[0], d.Offsets[1], 1e-12)
	assert.LessOrEqual(t, math.Abs(d.Offsets[0]), op.MaxDelta)
}

func TestPivotRelaxDoesNotWorsenRestraints(t *testing.T) {
	p := pose.FromSequence("AAAAAAAAAAAAAAAAAAAA")
	restraints := score.CaptureRestraints(p, 8, 12, 1)
	p.SetPsi(9, 20)
	p.SetPhi(11, -20)
	start := restraints.Evaluate(p)

	op := DefaultPivotCoupled()
	require.NoError(t, op.relax(context.Background(), p, 8, 12, restraints, random.New(3)))
	assert.LessOrEqual(t, restraints.Evaluate(p), start)
}

func TestPickPivotsInRange(t *testing.T) {
	rng := random.New(12)
	p := pose.FromSequence("AAAAAA")
	for i := 0; i < 500; i++ {
		a, b := pickPivots(p, 5, rng)
		assert.True(t, a != b)
		for _, pv := range []pivot{a, b} {
			assert.GreaterOrEqual(t, pv.res, 1)
			assert.LessOrEqual(t, pv.res, 6)
		}
	}
	assert.Equal(t, pivot{res: 3, kind: pose.Phi}, torsionToPivot(5))
	assert.Equal(t, pivot{res: 3, kind: pose.Psi}, torsionToPivot(6))
}

func TestBackboneMovesSkipLigands(t *testing.T) {
	ctx := context.Background()
	newPose := func() *pose.Pose {
		return pose.New([]pose.Residue{
			{Name1: "A", Phi: -60, Psi: -40},
			{Name1: "A", Phi: -60, Psi: -40},
			{Name1: "X", Phi: 10, Psi: 20, Ligand: true},
		})
	}
	ops := []Operator{Symmetric(30), DefaultPivotCoupled()}
	for _, op := range ops {
		t.Run(op.Name(), func(t *testing.T) {
			rng := random.New(5)
			for i := 0; i < 200; i++ {
				p := newPose()
				d, err := op.Apply(ctx, p, rng)
				require.NoError(t, err)
				require.Equal(t, Success, d.Status)
				assert.NotContains(t, d.Residues, 3)
				assert.InDelta(t, 10, p.Phi(3), 1e-9)
				assert.InDelta(t, 20, p.Psi(3), 1e-9)
			}
		})
	}
}

func TestBackboneMovesWithoutProteinResidues(t *testing.T) {
	p := pose.New([]pose.Residue{{Name1: "X", Ligand: true}})
	for _, op := range []Operator{Symmetric(30), DefaultPivotCoupled()} {
		d, err := op.Apply(context.Background(), p, random.New(1))
		require.NoError(t, err)
		assert.Equal(t, FailDoNotRetry, d.Status, op.Name())
	}
}

func TestFromConfig(t *testing.T) {
	op, err := FromConfig("", Params{MaxDelta: 10})
	require.NoError(t, err)
	assert.Equal(t, "single_torsion", op.Name())

	op, err = FromConfig("local", Params{MaxDelta: 10, LocalityRadius: 3})
	require.NoError(t, err)
	assert.Equal(t, "hierarchical", op.Name())

	op, err = FromConfig("pivot", Params{})
	require.NoError(t, err)
	assert.Equal(t, "pivot_coupled", op.Name())

	_, err = FromConfig("hierarchical", Params{LocalityRadius: -1})
	require.Error(t, err)
	_, err = FromConfig("bogus", Params{})
	require.Error(t, err)
}
