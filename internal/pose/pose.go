package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrResidueIndex reports an index outside [1, Size()].
var ErrResidueIndex = errors.New("residue index out of range")

// TorsionKind selects one of the two backbone torsions a move may perturb.
type TorsionKind int

const (
	// Phi is the primary backbone torsion.
	Phi TorsionKind = iota + 1
	// Psi is the secondary backbone torsion.
	Psi
)

func (k TorsionKind) String() string {
	switch k {
	case Phi:
		return "phi"
	case Psi:
		return "psi"
	default:
		return fmt.Sprintf("torsion(%d)", int(k))
	}
}

// Extended backbone torsions used for freshly built residues.
const (
	ExtendedPhi   = -150.0
	ExtendedPsi   = 150.0
	TransOmega    = 180.0
	disulfideCut  = 6.5
	disulfideSkip = 2
)

// Residue is one position of the chain.
type Residue struct {
	Name1  string    `json:"name1"`
	Phi    float64   `json:"phi"`
	Psi    float64   `json:"psi"`
	Omega  float64   `json:"omega"`
	Chi    []float64 `json:"chi,omitempty"`
	DAmino bool      `json:"d_amino,omitempty"`
	Ligand bool      `json:"ligand,omitempty"`
}

// UnmarshalJSON reads a residue whose omega defaults to trans when the field
// is absent. An explicit 0 stays cis.
func (r *Residue) UnmarshalJSON(data []byte) error {
	type wire Residue
	out := wire{Omega: TransOmega}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = Residue(out)
	return nil
}

// IsProtein reports whether backbone moves apply to the residue.
func (r Residue) IsProtein() bool { return !r.Ligand }

func (r Residue) clone() Residue {
	out := r
	out.Chi = append([]float64(nil), r.Chi...)
	return out
}

// Pose is the structural state. The zero value is an empty chain.
type Pose struct {
	residues   []Residue
	disulfides [][2]int

	coords      []Vec3
	coordsDirty bool
}

// New builds a pose from residue literals. Torsions are normalized into
// (-180, 180]; a zero omega is read as trans. Use FromRecord to restore a
// serialized pose, where omega is kept as stored.
func New(residues []Residue) *Pose {
	return newPose(residues, true)
}

func newPose(residues []Residue, zeroOmegaTrans bool) *Pose {
	p := &Pose{residues: make([]Residue, len(residues)), coordsDirty: true}
	for i, r := range residues {
		r = r.clone()
		r.Phi = NormalizeAngle(r.Phi)
		r.Psi = NormalizeAngle(r.Psi)
		if zeroOmegaTrans && r.Omega == 0 {
			r.Omega = TransOmega
		}
		r.Omega = NormalizeAngle(r.Omega)
		p.residues[i] = r
	}
	return p
}

// FromSequence builds an extended chain from one-letter residue codes.
func FromSequence(seq string) *Pose {
	residues := make([]Residue, 0, len(seq))
	for _, c := range seq {
		residues = append(residues, Residue{
			Name1: string(c),
			Phi:   ExtendedPhi,
			Psi:   ExtendedPsi,
			Omega: TransOmega,
		})
	}
	return New(residues)
}

// Size returns the residue count.
func (p *Pose) Size() int { return len(p.residues) }

func (p *Pose) check(i int) error {
	if i < 1 || i > len(p.residues) {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrResidueIndex, i, len(p.residues))
	}
	return nil
}

func (p *Pose) mustCheck(i int) {
	if err := p.check(i); err != nil {
		panic(err)
	}
}

// Residue returns a copy of residue i.
func (p *Pose) Residue(i int) (Residue, error) {
	if err := p.check(i); err != nil {
		return Residue{}, err
	}
	return p.residues[i-1].clone(), nil
}

// Name1 returns the one-letter type of residue i.
func (p *Pose) Name1(i int) string {
	p.mustCheck(i)
	return p.residues[i-1].Name1
}

// IsProtein reports whether residue i takes backbone moves.
func (p *Pose) IsProtein(i int) bool {
	p.mustCheck(i)
	return p.residues[i-1].IsProtein()
}

// IsDAmino reports whether residue i has D chirality.
func (p *Pose) IsDAmino(i int) bool {
	p.mustCheck(i)
	return p.residues[i-1].DAmino
}

// Torsion reads one backbone torsion of residue i.
func (p *Pose) Torsion(i int, kind TorsionKind) (float64, error) {
	if err := p.check(i); err != nil {
		return 0, err
	}
	switch kind {
	case Phi:
		return p.residues[i-1].Phi, nil
	case Psi:
		return p.residues[i-1].Psi, nil
	default:
		return 0, fmt.Errorf("unsupported torsion kind %s", kind)
	}
}

// SetTorsion writes one backbone torsion of residue i and invalidates the
// derived state.
func (p *Pose) SetTorsion(i int, kind TorsionKind, deg float64) error {
	if err := p.check(i); err != nil {
		return err
	}
	switch kind {
	case Phi:
		p.residues[i-1].Phi = NormalizeAngle(deg)
	case Psi:
		p.residues[i-1].Psi = NormalizeAngle(deg)
	default:
		return fmt.Errorf("unsupported torsion kind %s", kind)
	}
	p.coordsDirty = true
	return nil
}

func (p *Pose) Phi(i int) float64 {
	v, err := p.Torsion(i, Phi)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Pose) Psi(i int) float64 {
	v, err := p.Torsion(i, Psi)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Pose) SetPhi(i int, deg float64) {
	if err := p.SetTorsion(i, Phi, deg); err != nil {
		panic(err)
	}
}

func (p *Pose) SetPsi(i int, deg float64) {
	if err := p.SetTorsion(i, Psi, deg); err != nil {
		panic(err)
	}
}

// Omega returns the peptide torsion of residue i.
func (p *Pose) Omega(i int) float64 {
	p.mustCheck(i)
	return p.residues[i-1].Omega
}

// SetOmega writes the peptide torsion of residue i.
func (p *Pose) SetOmega(i int, deg float64) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.residues[i-1].Omega = NormalizeAngle(deg)
	p.coordsDirty = true
	return nil
}

// Chi returns a copy of the side-chain torsions of residue i.
func (p *Pose) Chi(i int) []float64 {
	p.mustCheck(i)
	return append([]float64(nil), p.residues[i-1].Chi...)
}

// SetChi replaces the side-chain torsions of residue i.
func (p *Pose) SetChi(i int, chi []float64) error {
	if err := p.check(i); err != nil {
		return err
	}
	out := make([]float64, len(chi))
	for k, v := range chi {
		out[k] = NormalizeAngle(v)
	}
	p.residues[i-1].Chi = out
	return nil
}

// Sequence returns the one-letter sequence.
func (p *Pose) Sequence() string {
	var b strings.Builder
	b.Grow(len(p.residues))
	for _, r := range p.residues {
		b.WriteString(r.Name1)
	}
	return b.String()
}

// Residues returns a deep copy of all residues.
func (p *Pose) Residues() []Residue {
	out := make([]Residue, len(p.residues))
	for i, r := range p.residues {
		out[i] = r.clone()
	}
	return out
}

// Clone returns an independent deep copy. Later edits to either pose are not
// visible through the other.
func (p *Pose) Clone() *Pose {
	out := &Pose{
		residues:    make([]Residue, len(p.residues)),
		disulfides:  append([][2]int(nil), p.disulfides...),
		coordsDirty: p.coordsDirty,
	}
	for i, r := range p.residues {
		out.residues[i] = r.clone()
	}
	if !p.coordsDirty {
		out.coords = append([]Vec3(nil), p.coords...)
	}
	return out
}

// Assign overwrites p with a deep copy of src.
func (p *Pose) Assign(src *Pose) {
	c := src.Clone()
	*p = *c
}

// ReplaceSegment swaps residues [left, right] for the given residues. The
// residue count changes when len(residues) != right-left+1. Only segment
// rebuild operators use this path.
func (p *Pose) ReplaceSegment(left, right int, residues []Residue) error {
	if err := p.check(left); err != nil {
		return err
	}
	if err := p.check(right); err != nil {
		return err
	}
	if left > right {
		return fmt.Errorf("replace segment: left %d > right %d", left, right)
	}
	inserted := New(residues).residues
	out := make([]Residue, 0, len(p.residues)-(right-left+1)+len(inserted))
	out = append(out, p.residues[:left-1]...)
	out = append(out, inserted...)
	out = append(out, p.residues[right:]...)
	p.residues = out
	p.disulfides = nil
	p.coordsDirty = true
	return nil
}
