package rotamer

import (
	"context"
	"errors"
	"fmt"

	"confsearch/internal/logging"
	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Filter decides whether a candidate side-chain placement is kept.
type Filter interface {
	Apply(ctx context.Context, p *pose.Pose) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, p *pose.Pose) (bool, error)

func (f FilterFunc) Apply(ctx context.Context, p *pose.Pose) (bool, error) { return f(ctx, p) }

// TrueFilter accepts everything.
type TrueFilter struct{}

func (TrueFilter) Apply(context.Context, *pose.Pose) (bool, error) { return true, nil }

// TryRotamers places the next rotamer of one residue on each application.
// The ensemble is built lazily on first use. A rotamer that the filter
// rejects is consumed and the pose is left unchanged (FailRetry); once the
// ensemble is exhausted every call reports FailDoNotRetry.
type TryRotamers struct {
	Residue        int
	Library        Library
	IncludeCurrent bool
	Filter         Filter
	Log            logging.Logger

	cursor *Cursor
}

func (*TryRotamers) Name() string { return "try_rotamers" }

// Cursor returns the active cursor, or nil before the first application.
func (t *TryRotamers) Cursor() *Cursor { return t.cursor }

// Reset drops the cursor so the next application rebuilds the ensemble.
func (t *TryRotamers) Reset() { t.cursor = nil }

func (t *TryRotamers) setup(p *pose.Pose) error {
	res, err := p.Residue(t.Residue)
	if err != nil {
		return fmt.Errorf("try rotamers: %w", err)
	}
	var current []float64
	if t.IncludeCurrent {
		current = res.Chi
		if current == nil {
			current = []float64{}
		}
	}
	ens, err := t.Library.Ensemble(res.Name1, current)
	if err != nil {
		return fmt.Errorf("try rotamers: %w", err)
	}
	t.cursor = NewCursor(t.Residue, ens)
	logging.OrNop(t.Log).Info("built rotamer set",
		logging.Int("residue", t.Residue),
		logging.String("type", res.Name1),
		logging.Int("rotamers", t.cursor.Len()),
	)
	return nil
}

func (t *TryRotamers) Apply(ctx context.Context, p *pose.Pose, _ random.Source) (perturb.Delta, error) {
	if err := ctx.Err(); err != nil {
		return perturb.Delta{}, err
	}
	if t.cursor == nil || t.cursor.Len() == 0 {
		if err := t.setup(p); err != nil {
			return perturb.Delta{}, err
		}
	}
	delta := perturb.Delta{Operator: t.Name(), Residues: []int{t.Residue}}

	rot, err := t.cursor.Next()
	if errors.Is(err, ErrExhausted) {
		logging.OrNop(t.Log).Info("reached the end of the rotamer ensemble", logging.Int("residue", t.Residue))
		delta.Status = perturb.FailDoNotRetry
		return delta, nil
	}
	if err != nil {
		return perturb.Delta{}, err
	}

	candidate := p.Clone()
	if err := candidate.SetChi(t.Residue, rot.Chi); err != nil {
		return perturb.Delta{}, err
	}
	filter := t.Filter
	if filter == nil {
		filter = TrueFilter{}
	}
	ok, err := filter.Apply(ctx, candidate)
	if err != nil {
		return perturb.Delta{}, fmt.Errorf("try rotamers filter: %w", err)
	}
	delta.Offsets = rot.Chi
	if !ok {
		delta.Status = perturb.FailRetry
		return delta, nil
	}
	p.Assign(candidate)
	delta.Status = perturb.Success
	return delta, nil
}
