// Package score maps a pose to a scalar energy. Lower is better.
package score

import (
	"context"
	"errors"
	"fmt"

	"confsearch/internal/pose"
)

// ErrNilFunction is returned when a search is configured without a score.
var ErrNilFunction = errors.New("score function is required")

// Function evaluates a pose. Implementations must not mutate the pose in a
// way visible to the caller and must depend only on its torsions and
// derived state.
type Function interface {
	Score(ctx context.Context, p *pose.Pose) (float64, error)
}

// Func adapts a plain function to Function.
type Func func(ctx context.Context, p *pose.Pose) (float64, error)

func (f Func) Score(ctx context.Context, p *pose.Pose) (float64, error) { return f(ctx, p) }

// Term is one energy component.
type Term interface {
	Name() string
	Evaluate(p *pose.Pose) float64
}

// WeightedTerm pairs a term with its weight.
type WeightedTerm struct {
	Term   Term
	Weight float64
}

// Weighted sums weighted terms. It is the default scoring function of the
// CLI; callers with a real force field plug in their own Function.
type Weighted struct {
	Terms []WeightedTerm
}

func (w *Weighted) Score(ctx context.Context, p *pose.Pose) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p == nil {
		return 0, errors.New("score: nil pose")
	}
	total := 0.0
	for _, wt := range w.Terms {
		if wt.Weight == 0 {
			continue
		}
		total += wt.Weight * wt.Term.Evaluate(p)
	}
	return total, nil
}

// Breakdown returns the weighted contribution of every term.
func (w *Weighted) Breakdown(p *pose.Pose) map[string]float64 {
	out := make(map[string]float64, len(w.Terms))
	for _, wt := range w.Terms {
		out[wt.Term.Name()] += wt.Weight * wt.Term.Evaluate(p)
	}
	return out
}

// Clone copies the term list; terms themselves are shared and stateless.
func (w *Weighted) Clone() *Weighted {
	return &Weighted{Terms: append([]WeightedTerm(nil), w.Terms...)}
}

// Reset drops every term.
func (w *Weighted) Reset() { w.Terms = nil }

// SetWeight sets the weight of the named term, adding term when missing.
func (w *Weighted) SetWeight(term Term, weight float64) {
	for i := range w.Terms {
		if w.Terms[i].Term.Name() == term.Name() {
			w.Terms[i].Weight = weight
			return
		}
	}
	w.Terms = append(w.Terms, WeightedTerm{Term: term, Weight: weight})
}

// Default returns the built-in torsion energy.
func Default() *Weighted {
	return &Weighted{Terms: []WeightedTerm{
		{Term: Rama{}, Weight: 1.0},
		{Term: Clash{Cutoff: 4.0}, Weight: 10.0},
		{Term: ChiStagger{}, Weight: 0.5},
		{Term: Disulfide{Ideal: 5.5}, Weight: 1.0},
	}}
}

// FromName resolves a named scoring function.
func FromName(name string) (Function, error) {
	switch name {
	case "", "default", "torsion":
		return Default(), nil
	case "rama":
		return &Weighted{Terms: []WeightedTerm{{Term: Rama{}, Weight: 1}}}, nil
	default:
		return nil, fmt.Errorf("unsupported score function: %s", name)
	}
}
