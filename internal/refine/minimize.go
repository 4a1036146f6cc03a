package refine

import (
	"context"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"confsearch/internal/pose"
	"confsearch/internal/score"
)

// GradientMinimizer runs gradient descent with a backtracking line search
// over the movable torsions. The gradient is taken by central differences.
type GradientMinimizer struct {
	// Tolerance is the relative score change below which iteration stops.
	Tolerance float64
	MaxIter   int
	// Step is the finite-difference step in degrees.
	Step float64
	// InitialStep is the first line-search step length in degrees along the
	// steepest torsion.
	InitialStep float64
}

// DefaultMinimizer uses tolerance 0.01 and 20 iterations.
func DefaultMinimizer() GradientMinimizer {
	return GradientMinimizer{Tolerance: 0.01, MaxIter: 20, Step: 0.01, InitialStep: 5}
}

// dof is one movable torsion: slot 0 is phi, 1 is psi, 2+k is chi k.
type dof struct {
	res  int
	slot int
}

func (d dof) get(p *pose.Pose) float64 {
	switch d.slot {
	case 0:
		return p.Phi(d.res)
	case 1:
		return p.Psi(d.res)
	default:
		return p.Chi(d.res)[d.slot-2]
	}
}

func (d dof) set(p *pose.Pose, v float64) {
	switch d.slot {
	case 0:
		p.SetPhi(d.res, v)
	case 1:
		p.SetPsi(d.res, v)
	default:
		chi := p.Chi(d.res)
		chi[d.slot-2] = v
		_ = p.SetChi(d.res, chi)
	}
}

func collectDOFs(p *pose.Pose, mm MoveMap) []dof {
	var out []dof
	for i := 1; i <= p.Size(); i++ {
		if !mm.Movable(i) || !p.IsProtein(i) {
			continue
		}
		if mm.Backbone {
			out = append(out, dof{res: i, slot: 0}, dof{res: i, slot: 1})
		}
		if mm.Chi {
			for k := range p.Chi(i) {
				out = append(out, dof{res: i, slot: 2 + k})
			}
		}
	}
	return out
}

func (m GradientMinimizer) Minimize(ctx context.Context, p *pose.Pose, fn score.Function, mm MoveMap) error {
	if fn == nil {
		return score.ErrNilFunction
	}
	dofs := collectDOFs(p, mm)
	if len(dofs) == 0 {
		return nil
	}
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 20
	}
	h := m.Step
	if h <= 0 {
		h = 0.01
	}
	alpha0 := m.InitialStep
	if alpha0 <= 0 {
		alpha0 = 5
	}
	seq := p.Sequence()

	f0, err := fn.Score(ctx, p)
	if err != nil {
		return err
	}
	x0 := make([]float64, len(dofs))
	for k, d := range dofs {
		x0[k] = d.get(p)
	}

	// Every evaluation runs on a scratch pose; p only takes the optimum.
	work := p.Clone()
	var evalErr error
	objective := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		if evalErr = ctx.Err(); evalErr != nil {
			return math.Inf(1)
		}
		for k, d := range dofs {
			d.set(work, x[k])
		}
		v, err := fn.Score(ctx, work)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return v
	}
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central, Step: h})
		},
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		InitValues:      &optimize.Location{F: f0},
		MajorIterations: maxIter,
		Converger:       &optimize.FunctionConverge{Relative: m.Tolerance, Iterations: 1},
	}
	method := &optimize.GradientDescent{
		Linesearcher: &optimize.Backtracking{},
		StepSizer:    &optimize.QuadraticStepSize{InitialStepFactor: alpha0},
	}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if evalErr != nil {
		return evalErr
	}
	// A failed line search still leaves the best location found.
	if result == nil {
		return err
	}
	if result.F < f0 {
		for k, d := range dofs {
			d.set(p, result.X[k])
		}
	}
	return checkTopology(seq, p)
}
