package perturb

import (
	"context"

	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// RamaSampler draws a backbone conformation for a residue type.
type RamaSampler interface {
	Sample(name1 string, rng random.Source) (phi, psi float64)
}

// BasinSampler picks one of the built-in backbone basins, weighted by
// depth, and spreads around it with a gaussian of Spread degrees.
type BasinSampler struct {
	Spread float64
}

type basin struct {
	phi, psi, weight float64
}

var (
	generalBasins = []basin{{-63, -43, 0.45}, {-120, 130, 0.3}, {-75, 145, 0.2}, {60, 45, 0.05}}
	glycineBasins = []basin{{-63, -43, 0.3}, {63, 43, 0.3}, {180, 180, 0.4}}
)

func (b BasinSampler) Sample(name1 string, rng random.Source) (float64, float64) {
	basins := generalBasins
	if name1 == "G" {
		basins = glycineBasins
	}
	spread := b.Spread
	if spread <= 0 {
		spread = 15
	}
	u := rng.Uniform()
	chosen := basins[len(basins)-1]
	for _, bs := range basins {
		if u < bs.weight {
			chosen = bs
			break
		}
		u -= bs.weight
	}
	return chosen.phi + rng.Gaussian()*spread, chosen.psi + rng.Gaussian()*spread
}

// Hierarchical perturbs a window of residues around an anchor. At level 1 a
// new anchor is drawn; deeper levels reuse it and widen the window to
// (Local-1)*Level/2 residues on each side. Local == 0 perturbs every residue.
// After the backbone edit the special bonds are re-derived.
type Hierarchical struct {
	MaxDelta   float64
	Local      int
	Level      int
	RamaBiased bool
	Sampler    RamaSampler

	anchor int
}

func (*Hierarchical) Name() string { return "hierarchical" }

// Anchor returns the residue the last level-1 application picked.
func (h *Hierarchical) Anchor() int { return h.anchor }

// SetLevel changes the level for the next application.
func (h *Hierarchical) SetLevel(level int) { h.Level = level }

// Window returns the inclusive residue range perturbed around anchor for a
// pose of size n. Out-of-range bounds are clamped; a negative half-width
// collapses to the anchor alone.
func Window(anchor, local, level, n int) (int, int) {
	if n <= 0 {
		return 1, 0
	}
	if local == 0 {
		return 1, n
	}
	half := (local - 1) * level / 2
	if half < 0 {
		half = 0
	}
	lo, hi := anchor-half, anchor+half
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

func (h *Hierarchical) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error) {
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if err := requirePose(p); err != nil {
		return Delta{}, err
	}
	level := h.Level
	if level < 1 {
		level = 1
	}
	if level == 1 || h.anchor < 1 || h.anchor > p.Size() {
		h.anchor = rng.RangeInt(1, p.Size())
	}
	sampler := h.Sampler
	if sampler == nil {
		sampler = BasinSampler{}
	}

	lo, hi := Window(h.anchor, h.Local, level, p.Size())
	delta := Delta{Operator: h.Name(), Status: Success}
	for i := lo; i <= hi; i++ {
		if !p.IsProtein(i) {
			continue
		}
		var phi, psi float64
		if level == 1 && h.RamaBiased {
			phi, psi = sampler.Sample(p.Name1(i), rng)
			if p.IsDAmino(i) {
				phi, psi = -phi, -psi
			}
		} else {
			phi = random.Symmetric(rng, h.MaxDelta) + p.Phi(i)
			psi = random.Symmetric(rng, h.MaxDelta) + p.Psi(i)
		}
		p.SetPhi(i, phi)
		p.SetPsi(i, psi)
		delta.Residues = append(delta.Residues, i)
	}
	p.DetectDisulfides()
	return delta, nil
}
