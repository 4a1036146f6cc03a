package perturb

import (
	"context"
	"fmt"

	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// SingleTorsion adds a uniform offset in [Lo, Hi) to phi or psi of one
// uniformly chosen protein residue.
type SingleTorsion struct {
	Lo float64
	Hi float64
}

// Symmetric returns a SingleTorsion drawing offsets in [-width, width).
func Symmetric(width float64) SingleTorsion {
	return SingleTorsion{Lo: -width, Hi: width}
}

func (SingleTorsion) Name() string { return "single_torsion" }

func (s SingleTorsion) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error) {
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if err := requirePose(p); err != nil {
		return Delta{}, err
	}
	if s.Hi < s.Lo {
		return Delta{}, fmt.Errorf("single torsion: empty range [%v, %v)", s.Lo, s.Hi)
	}

	candidates := proteinResidues(p, 1, p.Size())
	if len(candidates) == 0 {
		return noCandidates(s.Name()), nil
	}
	res := candidates[rng.RangeInt(1, len(candidates))-1]
	kind := pose.Phi
	if rng.Uniform() >= 0.5 {
		kind = pose.Psi
	}
	offset := s.Lo + rng.Uniform()*(s.Hi-s.Lo)

	current, err := p.Torsion(res, kind)
	if err != nil {
		return Delta{}, err
	}
	if err := p.SetTorsion(res, kind, current+offset); err != nil {
		return Delta{}, err
	}
	return Delta{
		Operator: s.Name(),
		Status:   Success,
		Residues: []int{res},
		Offsets:  []float64{offset},
		Detail:   kind.String(),
	}, nil
}
