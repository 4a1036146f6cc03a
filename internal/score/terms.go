package score

import (
	"math"

	"confsearch/internal/pose"
)

type well struct {
	phi, psi, depth float64
}

// backbone basins: right-handed helix, beta, polyproline, left-handed helix
var ramaWells = []well{
	{phi: -63, psi: -43, depth: 1.0},
	{phi: -120, psi: 130, depth: 0.9},
	{phi: -75, psi: 145, depth: 0.8},
	{phi: 60, psi: 45, depth: 0.3},
}

// glycine is nearly symmetric
var glyWells = []well{
	{phi: -63, psi: -43, depth: 0.8},
	{phi: 63, psi: 43, depth: 0.8},
	{phi: 180, psi: 180, depth: 0.7},
}

func angleDiff(a, b float64) float64 {
	return pose.NormalizeAngle(a - b)
}

// RamaEnergy scores one backbone conformation against the basins for a
// residue type. Zero is the bottom of the deepest basin.
func RamaEnergy(name1 string, phi, psi float64) float64 {
	wells := ramaWells
	if name1 == "G" {
		wells = glyWells
	}
	best := math.Inf(1)
	for _, w := range wells {
		dphi := angleDiff(phi, w.phi) / 40
		dpsi := angleDiff(psi, w.psi) / 40
		e := (1 - w.depth) + 0.5*(dphi*dphi+dpsi*dpsi)
		if e < best {
			best = e
		}
	}
	return best
}

// Rama sums the backbone basin energy of protein residues. D residues are
// scored in the mirrored map.
type Rama struct{}

func (Rama) Name() string { return "rama" }

func (Rama) Evaluate(p *pose.Pose) float64 {
	total := 0.0
	for i := 1; i <= p.Size(); i++ {
		if !p.IsProtein(i) {
			continue
		}
		phi, psi := p.Phi(i), p.Psi(i)
		if p.IsDAmino(i) {
			phi, psi = -phi, -psi
		}
		total += RamaEnergy(p.Name1(i), phi, psi)
	}
	return total
}

// Clash penalizes CA pairs at least three apart in sequence that come closer
// than Cutoff.
type Clash struct {
	Cutoff float64
}

func (Clash) Name() string { return "clash" }

func (c Clash) Evaluate(p *pose.Pose) float64 {
	coords := p.Coords()
	total := 0.0
	for i := 0; i < len(coords); i++ {
		for j := i + 3; j < len(coords); j++ {
			d := pose.Distance(coords[i], coords[j])
			if d < c.Cutoff {
				total += (c.Cutoff - d) * (c.Cutoff - d)
			}
		}
	}
	return total
}

// ChiStagger prefers staggered side-chain torsions.
type ChiStagger struct{}

func (ChiStagger) Name() string { return "chi" }

func (ChiStagger) Evaluate(p *pose.Pose) float64 {
	total := 0.0
	for i := 1; i <= p.Size(); i++ {
		for _, chi := range p.Chi(i) {
			total += 0.5 * (1 + math.Cos(3*chi*math.Pi/180))
		}
	}
	return total
}

// Disulfide restrains detected special bonds to an ideal CA-CA distance.
type Disulfide struct {
	Ideal float64
}

func (Disulfide) Name() string { return "disulfide" }

func (d Disulfide) Evaluate(p *pose.Pose) float64 {
	total := 0.0
	for _, b := range p.Disulfides() {
		if b[0] > p.Size() || b[1] > p.Size() {
			continue
		}
		dev := pose.Distance(p.CA(b[0]), p.CA(b[1])) - d.Ideal
		total += dev*dev - 1
	}
	return total
}

// DistanceRestraint holds one CA-CA distance.
type DistanceRestraint struct {
	I, J   int
	Target float64
	SD     float64
}

// Restraints is a flat-bottom-free harmonic restraint set, used to keep the
// rest of the chain in place while a local window relaxes.
type Restraints struct {
	Pairs []DistanceRestraint
}

func (Restraints) Name() string { return "atom_pair_constraint" }

func (r Restraints) Evaluate(p *pose.Pose) float64 {
	total := 0.0
	for _, c := range r.Pairs {
		if c.I < 1 || c.J < 1 || c.I > p.Size() || c.J > p.Size() {
			continue
		}
		sd := c.SD
		if sd <= 0 {
			sd = 1
		}
		dev := (pose.Distance(p.CA(c.I), p.CA(c.J)) - c.Target) / sd
		total += dev * dev
	}
	return total
}

// CaptureRestraints records the current CA-CA distances between residues
// before lo-1 and after hi+1, the pairs a local move at [lo, hi] should not
// disturb.
func CaptureRestraints(p *pose.Pose, lo, hi int, sd float64) Restraints {
	var out Restraints
	for i := 1; i < lo-1; i++ {
		if !p.IsProtein(i) {
			continue
		}
		for j := hi + 2; j <= p.Size(); j++ {
			if !p.IsProtein(j) {
				continue
			}
			out.Pairs = append(out.Pairs, DistanceRestraint{
				I: i, J: j, Target: pose.Distance(p.CA(i), p.CA(j)), SD: sd,
			})
		}
	}
	return out
}
