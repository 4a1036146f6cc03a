package refine

import (
	"context"
	"errors"
	"fmt"

	"confsearch/internal/pose"
	"confsearch/internal/rotamer"
	"confsearch/internal/score"
)

// GreedyRepacker visits residues in order and keeps, for each, the library
// rotamer with the lowest total score. Rounds repeats the sweep; a sweep
// that changes nothing ends early.
type GreedyRepacker struct {
	Library rotamer.Library
	Rounds  int
	// Task restricts repacking to these residues; nil repacks all of them.
	Task map[int]bool
}

func (g GreedyRepacker) Repack(ctx context.Context, p *pose.Pose, fn score.Function) error {
	if fn == nil {
		return score.ErrNilFunction
	}
	rounds := g.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	seq := p.Sequence()

	best, err := fn.Score(ctx, p)
	if err != nil {
		return err
	}
	for round := 0; round < rounds; round++ {
		changed := false
		for i := 1; i <= p.Size(); i++ {
			if g.Task != nil && !g.Task[i] {
				continue
			}
			if !p.IsProtein(i) {
				continue
			}
			ens, err := g.Library.Ensemble(p.Name1(i), nil)
			if errors.Is(err, rotamer.ErrUnknownResidue) {
				continue
			}
			if err != nil {
				return fmt.Errorf("repack residue %d: %w", i, err)
			}
			keep := p.Chi(i)
			for _, rot := range ens {
				if err := p.SetChi(i, rot.Chi); err != nil {
					return err
				}
				s, err := fn.Score(ctx, p)
				if err != nil {
					return err
				}
				if s < best {
					best = s
					keep = rot.Chi
					changed = true
				}
			}
			if err := p.SetChi(i, keep); err != nil {
				return err
			}
		}
		if !changed {
			break
		}
	}
	return checkTopology(seq, p)
}
