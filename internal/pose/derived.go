package pose

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Secondary structure codes produced by Secstruct.
const (
	SSHelix  = 'H'
	SSStrand = 'E'
	SSLoop   = 'L'
)

// ClassifySS assigns a secondary structure code from one residue's phi/psi.
func ClassifySS(phi, psi float64) byte {
	switch {
	case phi >= -100 && phi <= -30 && psi >= -80 && psi <= -10:
		return SSHelix
	case phi >= -180 && phi <= -45 && (psi >= 90 || psi <= -150):
		return SSStrand
	default:
		return SSLoop
	}
}

// ClassifyABEGO assigns the backbone bin of one residue.
func ClassifyABEGO(phi, psi, omega float64) byte {
	if math.Abs(omega) < 90 {
		return 'O'
	}
	if phi < 0 {
		if psi >= -75 && psi < 50 {
			return 'A'
		}
		return 'B'
	}
	if psi >= -100 && psi < 100 {
		return 'G'
	}
	return 'E'
}

// Secstruct re-derives the per-residue secondary structure string.
func (p *Pose) Secstruct() string {
	b := make([]byte, len(p.residues))
	for i, r := range p.residues {
		if !r.IsProtein() {
			b[i] = SSLoop
			continue
		}
		b[i] = ClassifySS(r.Phi, r.Psi)
	}
	return string(b)
}

// ABEGO re-derives the per-residue backbone class string.
func (p *Pose) ABEGO() string {
	b := make([]byte, len(p.residues))
	for i, r := range p.residues {
		if !r.IsProtein() {
			b[i] = 'X'
			continue
		}
		b[i] = ClassifyABEGO(r.Phi, r.Psi, r.Omega)
	}
	return string(b)
}

// Coords returns the CA trace, rebuilding it if any torsion changed since
// the last read. The returned slice is a copy.
func (p *Pose) Coords() []Vec3 {
	p.ensureCoords()
	return append([]Vec3(nil), p.coords...)
}

// CA returns the CA position of residue i.
func (p *Pose) CA(i int) Vec3 {
	p.mustCheck(i)
	p.ensureCoords()
	return p.coords[i-1]
}

func (p *Pose) ensureCoords() {
	if !p.coordsDirty && len(p.coords) == len(p.residues) {
		return
	}
	p.coords = buildTrace(p.residues)
	p.coordsDirty = false
}

func buildTrace(residues []Residue) []Vec3 {
	n := len(residues)
	out := make([]Vec3, n)
	if n == 0 {
		return out
	}
	out[0] = Vec3{}
	if n == 1 {
		return out
	}
	out[1] = Vec3{X: CADistance}
	if n == 2 {
		return out
	}
	theta := virtualAngle(residues[1].Phi, residues[1].Psi) * deg2rad
	out[2] = r3.Add(out[1], Vec3{X: -CADistance * math.Cos(theta), Y: CADistance * math.Sin(theta)})
	for i := 3; i < n; i++ {
		angle := virtualAngle(residues[i-1].Phi, residues[i-1].Psi)
		dihedral := virtualDihedral(residues[i-2].Psi, residues[i-1].Phi)
		bond := CADistance
		if math.Abs(residues[i-1].Omega) < 90 {
			bond = 2.9
		}
		out[i] = place(out[i-3], out[i-2], out[i-1], bond, angle, dihedral)
	}
	return out
}

// DetectDisulfides re-derives the special bonds between cysteines whose CA
// atoms are close enough to bridge. Each cysteine joins at most one bond.
func (p *Pose) DetectDisulfides() [][2]int {
	p.ensureCoords()
	p.disulfides = p.disulfides[:0]
	used := make(map[int]bool)
	for i := range p.residues {
		if p.residues[i].Name1 != "C" || used[i] {
			continue
		}
		best, bestDist := -1, disulfideCut
		for j := i + disulfideSkip + 1; j < len(p.residues); j++ {
			if p.residues[j].Name1 != "C" || used[j] {
				continue
			}
			if d := Distance(p.coords[i], p.coords[j]); d <= bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			used[i], used[best] = true, true
			p.disulfides = append(p.disulfides, [2]int{i + 1, best + 1})
		}
	}
	return p.Disulfides()
}

// Disulfides returns the last detected special bonds as 1-based pairs.
func (p *Pose) Disulfides() [][2]int {
	return append([][2]int(nil), p.disulfides...)
}

// Fingerprint hashes the sequence and torsions rounded to 1e-3 degrees.
func (p *Pose) Fingerprint() string {
	var b strings.Builder
	b.WriteString(p.Sequence())
	for _, r := range p.residues {
		fmt.Fprintf(&b, "|%.3f,%.3f,%.3f", r.Phi, r.Psi, r.Omega)
		for _, c := range r.Chi {
			fmt.Fprintf(&b, ",%.3f", c)
		}
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two poses carry the same residues and torsions.
func (p *Pose) Equal(o *Pose) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.residues) != len(o.residues) {
		return false
	}
	for i := range p.residues {
		a, b := p.residues[i], o.residues[i]
		if a.Name1 != b.Name1 || a.Phi != b.Phi || a.Psi != b.Psi || a.Omega != b.Omega ||
			a.DAmino != b.DAmino || a.Ligand != b.Ligand || len(a.Chi) != len(b.Chi) {
			return false
		}
		for k := range a.Chi {
			if a.Chi[k] != b.Chi[k] {
				return false
			}
		}
	}
	return true
}
