package perturb

import (
	"context"
	"fmt"
	"math"

	"confsearch/internal/mc"
	"confsearch/internal/pose"
	"confsearch/internal/random"
	"confsearch/internal/score"
)

// PivotCoupled rotates one backbone torsion by +delta and a nearby coupled
// torsion by -delta, then relaxes the residues between the two pivots with a
// short inner Metropolis run that keeps the flanking CA-CA distances as they
// were before the move.
type PivotCoupled struct {
	MaxDelta         float64
	Variance         float64
	RelaxCycles      int
	RelaxStep        float64
	RelaxTemperature float64
	RestraintSD      float64
}

// DefaultPivotCoupled mirrors the classic settings: 60 degree pivots, a
// coupling spread of 5 torsions and 100 relaxation cycles of 5 degrees at
// temperature 2.
func DefaultPivotCoupled() PivotCoupled {
	return PivotCoupled{
		MaxDelta:         60,
		Variance:         5,
		RelaxCycles:      100,
		RelaxStep:        5,
		RelaxTemperature: 2,
		RestraintSD:      1,
	}
}

func (PivotCoupled) Name() string { return "pivot_coupled" }

type pivot struct {
	res  int
	kind pose.TorsionKind
}

func torsionToPivot(t int) pivot {
	res := (t + 1) / 2
	kind := pose.Phi
	if t-(res-1)*2 == 2 {
		kind = pose.Psi
	}
	return pivot{res: res, kind: kind}
}

// pickPivots draws a torsion index in [1, 2n] and a distinct coupled index
// at round(first + variance*gaussian) that lies in range. Torsions of
// non-protein residues are redrawn. The pose must hold a protein residue.
func pickPivots(p *pose.Pose, variance float64, rng random.Source) (pivot, pivot) {
	total := 2 * p.Size()
	for {
		first := rng.RangeInt(1, total)
		if !p.IsProtein(torsionToPivot(first).res) {
			continue
		}
		coupled := first
		for coupled == first {
			coupled = int(math.Floor(float64(first) + variance*rng.Gaussian() + 0.5))
		}
		if coupled >= 1 && coupled <= total && p.IsProtein(torsionToPivot(coupled).res) {
			return torsionToPivot(first), torsionToPivot(coupled)
		}
	}
}

func (pc PivotCoupled) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error) {
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if err := requirePose(p); err != nil {
		return Delta{}, err
	}
	variance := pc.Variance
	if variance <= 0 {
		variance = 5
	} else if variance < 1 {
		// narrower spreads almost never leave the first torsion
		variance = 1
	}

	if len(proteinResidues(p, 1, p.Size())) == 0 {
		return noCandidates(pc.Name()), nil
	}

	delta := random.Symmetric(rng, pc.MaxDelta)
	a, b := pickPivots(p, variance, rng)
	lo, hi := a.res, b.res
	if lo > hi {
		lo, hi = hi, lo
	}
	restraints := score.CaptureRestraints(p, lo, hi, pc.RestraintSD)

	if err := addTorsion(p, a, delta); err != nil {
		return Delta{}, err
	}
	if err := addTorsion(p, b, -delta); err != nil {
		return Delta{}, err
	}
	if err := pc.relax(ctx, p, lo, hi, restraints, rng); err != nil {
		return Delta{}, err
	}

	return Delta{
		Operator: pc.Name(),
		Status:   Success,
		Residues: []int{a.res, b.res},
		Offsets:  []float64{delta, -delta},
		Detail:   fmt.Sprintf("%s/%s", a.kind, b.kind),
	}, nil
}

func addTorsion(p *pose.Pose, pv pivot, delta float64) error {
	v, err := p.Torsion(pv.res, pv.kind)
	if err != nil {
		return err
	}
	return p.SetTorsion(pv.res, pv.kind, v+delta)
}

func (pc PivotCoupled) relax(ctx context.Context, p *pose.Pose, lo, hi int, restraints score.Restraints, rng random.Source) error {
	movable := proteinResidues(p, lo, hi)
	if pc.RelaxCycles <= 0 || len(restraints.Pairs) == 0 || len(movable) == 0 {
		return nil
	}
	engine := mc.New(pc.RelaxTemperature, rng)
	current := restraints.Evaluate(p)
	engine.Reset(p, current)

	for cycle := 0; cycle < pc.RelaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pv := pivot{res: movable[rng.RangeInt(1, len(movable))-1], kind: pose.Phi}
		step := random.Symmetric(rng, pc.RelaxStep)
		if rng.Uniform() >= 0.5 {
			pv.kind = pose.Psi
		}
		before, err := p.Torsion(pv.res, pv.kind)
		if err != nil {
			return err
		}
		if err := p.SetTorsion(pv.res, pv.kind, before+step); err != nil {
			return err
		}
		next := restraints.Evaluate(p)
		if engine.EvaluateMove("relax", current, next, p) {
			current = next
			continue
		}
		if err := p.SetTorsion(pv.res, pv.kind, before); err != nil {
			return err
		}
	}
	engine.RecoverLow(p)
	return nil
}
