package remodel

import (
	"context"
	"fmt"

	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// BuildConfig is the prepared input of a segment build. It depends only on
// the cache key: Residues holds one template per position of Key.SS.
type BuildConfig struct {
	Key      Key
	Residues []pose.Residue
}

// SegmentBuilder turns a target into a replacement segment. Configure may be
// expensive and its result is cached by Target.Key; Build receives the full
// target of the current call and reports whether the rebuilt segment closed.
type SegmentBuilder interface {
	Configure(t Target) (BuildConfig, error)
	Build(ctx context.Context, cfg BuildConfig, t Target, p *pose.Pose, rng random.Source) (bool, error)
}

type torsionPair struct{ phi, psi float64 }

// idealTorsions maps (ss, abego) to a backbone conformation inside the
// matching region. The second key byte 0 is the ss default.
var idealTorsions = map[[2]byte]torsionPair{
	{'H', 0}:   {-57, -47},
	{'E', 0}:   {-120, 130},
	{'L', 0}:   {-75, 60},
	{'L', 'A'}: {-90, 0},
	{'L', 'B'}: {-75, 60},
	{'L', 'G'}: {80, 10},
	{'L', 'E'}: {80, 180},
}

// IdealTorsions returns the template phi and psi for one target position.
func IdealTorsions(ss, abego byte) (float64, float64) {
	if t, ok := idealTorsions[[2]byte{ss, abego}]; ok {
		return t.phi, t.psi
	}
	t := idealTorsions[[2]byte{ss, 0}]
	return t.phi, t.psi
}

// IdealBuilder places template torsions for every inserted residue, adds a
// gaussian jitter of Jitter degrees and calls the build closed when no CA of
// the new segment comes closer than ClashDistance to a CA at least three
// positions away.
type IdealBuilder struct {
	Jitter        float64
	ClashDistance float64
}

// DefaultIdealBuilder jitters by 5 degrees and uses a 3 A clash distance.
func DefaultIdealBuilder() IdealBuilder {
	return IdealBuilder{Jitter: 5, ClashDistance: 3}
}

func (b IdealBuilder) Configure(t Target) (BuildConfig, error) {
	if len(t.AA) != len(t.SS) || len(t.ABEGO) != len(t.SS) {
		return BuildConfig{}, fmt.Errorf("build target lengths differ: ss %d aa %d abego %d",
			len(t.SS), len(t.AA), len(t.ABEGO))
	}
	if t.Left < 1 || t.Right < t.Left {
		return BuildConfig{}, fmt.Errorf("build target span [%d, %d] is invalid", t.Left, t.Right)
	}
	residues := make([]pose.Residue, len(t.SS))
	for i := range residues {
		phi, psi := IdealTorsions(t.SS[i], 0)
		residues[i] = pose.Residue{
			Name1: string(t.AA[i]),
			Phi:   phi,
			Psi:   psi,
			Omega: pose.TransOmega,
		}
	}
	return BuildConfig{Key: t.Key(), Residues: residues}, nil
}

// Build writes the segment into p. Overlap residues keep the torsions and
// side chains they had in p; inserted residues take the template adjusted
// to the requested backbone class.
func (b IdealBuilder) Build(ctx context.Context, cfg BuildConfig, t Target, p *pose.Pose, rng random.Source) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if cfg.Key != t.Key() || len(cfg.Residues) != t.Len() || len(t.ABEGO) != t.Len() {
		return false, fmt.Errorf("build configuration does not match target %q", t.SS)
	}
	if t.Right > p.Size() {
		return false, fmt.Errorf("build span [%d, %d]: %w", t.Left, t.Right, pose.ErrResidueIndex)
	}

	segment := make([]pose.Residue, len(cfg.Residues))
	head := t.Start - t.Left + 1
	tail := t.Right - t.End + 1
	for i, tmpl := range cfg.Residues {
		switch {
		case i < head:
			r, err := p.Residue(t.Left + i)
			if err != nil {
				return false, err
			}
			segment[i] = r
		case i >= len(segment)-tail:
			r, err := p.Residue(t.End + i - (len(segment) - tail))
			if err != nil {
				return false, err
			}
			segment[i] = r
		default:
			r := tmpl
			r.Phi, r.Psi = IdealTorsions(t.SS[i], t.ABEGO[i])
			if b.Jitter > 0 {
				r.Phi += rng.Gaussian() * b.Jitter
				r.Psi += rng.Gaussian() * b.Jitter
			}
			segment[i] = r
		}
	}
	if err := p.ReplaceSegment(t.Left, t.Right, segment); err != nil {
		return false, err
	}
	p.DetectDisulfides()
	return !b.clashes(p, t.Left, t.Left+len(segment)-1), nil
}

func (b IdealBuilder) clashes(p *pose.Pose, lo, hi int) bool {
	cut := b.ClashDistance
	if cut <= 0 {
		return false
	}
	ca := p.Coords()
	for i := lo; i <= hi; i++ {
		for j := 1; j <= len(ca); j++ {
			if j-i < 3 && i-j < 3 {
				continue
			}
			if pose.Distance(ca[i-1], ca[j-1]) < cut {
				return true
			}
		}
	}
	return false
}
