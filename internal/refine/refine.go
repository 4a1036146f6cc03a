// Package refine holds the discrete and continuous local optimizers run
// after each perturbation. Both keep residue count and topology fixed.
package refine

import (
	"context"
	"fmt"

	"confsearch/internal/pose"
	"confsearch/internal/score"
)

// Repacker substitutes discrete side-chain conformations with the backbone
// held fixed.
type Repacker interface {
	Repack(ctx context.Context, p *pose.Pose, fn score.Function) error
}

// Minimizer optimizes the torsions a MoveMap marks movable.
type Minimizer interface {
	Minimize(ctx context.Context, p *pose.Pose, fn score.Function, mm MoveMap) error
}

// MoveMap marks which degrees of freedom a minimizer may change. Residues
// restricts the edit to a set of positions; nil means every residue.
type MoveMap struct {
	Backbone bool
	Chi      bool
	Residues map[int]bool
}

// AllMovable frees backbone and side chains everywhere.
func AllMovable() MoveMap { return MoveMap{Backbone: true, Chi: true} }

// Movable reports whether residue i may change at all.
func (m MoveMap) Movable(i int) bool {
	if !m.Backbone && !m.Chi {
		return false
	}
	if m.Residues == nil {
		return true
	}
	return m.Residues[i]
}

// NopRepacker leaves the pose untouched.
type NopRepacker struct{}

func (NopRepacker) Repack(context.Context, *pose.Pose, score.Function) error { return nil }

// NopMinimizer leaves the pose untouched.
type NopMinimizer struct{}

func (NopMinimizer) Minimize(context.Context, *pose.Pose, score.Function, MoveMap) error { return nil }

// checkTopology guards the contract that refiners never change the chain.
func checkTopology(before string, p *pose.Pose) error {
	if got := p.Sequence(); got != before {
		return fmt.Errorf("refiner changed the sequence: %q -> %q", before, got)
	}
	return nil
}
