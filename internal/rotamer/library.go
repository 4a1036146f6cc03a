// Package rotamer enumerates discrete side-chain conformations and walks
// them one at a time.
package rotamer

import (
	"errors"
	"fmt"
)

// MaxExplosion is the highest supported sampling level; level k adds extra
// samples around the first k chi angles.
const MaxExplosion = 4

var staggered = []float64{60, 180, -60}

var chiCount = map[string]int{
	"A": 0, "G": 0, "P": 0,
	"C": 1, "S": 1, "T": 1, "V": 1,
	"D": 2, "F": 2, "H": 2, "I": 2, "L": 2, "N": 2, "W": 2, "Y": 2,
	"E": 3, "M": 3, "Q": 3,
	"K": 4, "R": 4,
}

// ErrUnknownResidue is returned for residue types the library has no entry for.
var ErrUnknownResidue = errors.New("no rotamers for residue type")

// Rotamer is one set of side-chain torsions.
type Rotamer struct {
	Chi []float64 `json:"chi"`
}

func (r Rotamer) clone() Rotamer {
	return Rotamer{Chi: append([]float64(nil), r.Chi...)}
}

// Library builds ordered rotamer ensembles.
type Library struct {
	// Explosion widens sampling around each staggered value for the first
	// Explosion chi angles.
	Explosion int
	// StepSD is the standard deviation, in degrees, used by explosion.
	StepSD float64
}

// DefaultLibrary samples staggered values only.
func DefaultLibrary() Library {
	return Library{StepSD: 10}
}

// ChiCount returns the number of side-chain torsions of a residue type.
func ChiCount(name1 string) (int, bool) {
	n, ok := chiCount[name1]
	return n, ok
}

func (l Library) validate() error {
	if l.Explosion < 0 || l.Explosion > MaxExplosion {
		return fmt.Errorf("rotamer explosion must be in [0, %d], got %d", MaxExplosion, l.Explosion)
	}
	return nil
}

// samples returns the values tried for chi index c.
func (l Library) samples(c int) []float64 {
	if c >= l.Explosion {
		return staggered
	}
	sd := l.StepSD
	if sd <= 0 {
		sd = 10
	}
	out := make([]float64, 0, len(staggered)*5)
	for _, v := range staggered {
		out = append(out, v, v-sd, v-sd/2, v+sd/2, v+sd)
	}
	return out
}

// Ensemble returns the ordered rotamers for a residue type. When current is
// non-nil it is placed first, matching include-current sampling. The result
// is deterministic for a given library and inputs.
func (l Library) Ensemble(name1 string, current []float64) ([]Rotamer, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	n, ok := chiCount[name1]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResidue, name1)
	}

	var out []Rotamer
	if current != nil {
		out = append(out, Rotamer{Chi: append([]float64(nil), current...)})
	}
	if n == 0 {
		return out, nil
	}

	idx := make([]int, n)
	sets := make([][]float64, n)
	for c := range sets {
		sets[c] = l.samples(c)
	}
	for {
		chi := make([]float64, n)
		for c := range chi {
			chi[c] = sets[c][idx[c]]
		}
		out = append(out, Rotamer{Chi: chi})

		c := n - 1
		for ; c >= 0; c-- {
			idx[c]++
			if idx[c] < len(sets[c]) {
				break
			}
			idx[c] = 0
		}
		if c < 0 {
			return out, nil
		}
	}
}
