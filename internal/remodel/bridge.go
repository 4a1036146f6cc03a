package remodel

import (
	"context"
	"fmt"

	"confsearch/internal/logging"
	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Bridge rebuilds the residues between junction residues Start and End,
// plus Overlap residues on each side, into the motif. The builder is
// reconfigured only when the target differs from the previous call.
type Bridge struct {
	Motif   string
	Start   int
	End     int
	Overlap int
	Builder SegmentBuilder
	Cache   *BuildCache
	Log     logging.Logger

	last Target
}

// NewBridge wires a bridge with the default builder and a fresh cache.
func NewBridge(motif string, start, end, overlap int) *Bridge {
	return &Bridge{
		Motif:   motif,
		Start:   start,
		End:     end,
		Overlap: overlap,
		Builder: DefaultIdealBuilder(),
		Cache:   NewBuildCache(),
	}
}

func (*Bridge) Name() string { return "bridge" }

// LastTarget returns the target of the most recent application.
func (b *Bridge) LastTarget() Target { return b.last }

// Plan parses the motif and computes the target without touching p.
func (b *Bridge) Plan(p *pose.Pose) (Target, error) {
	segments, err := ParseMotif(b.Motif)
	if err != nil {
		return Target{}, err
	}
	return BuildTarget(p, segments, b.Start, b.End, b.Overlap)
}

func (b *Bridge) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (perturb.Delta, error) {
	if err := ctx.Err(); err != nil {
		return perturb.Delta{}, err
	}
	if b.Builder == nil {
		return perturb.Delta{}, fmt.Errorf("bridge: segment builder is required")
	}
	if b.Cache == nil {
		b.Cache = NewBuildCache()
	}
	log := logging.OrNop(b.Log)

	target, err := b.Plan(p)
	if err != nil {
		return perturb.Delta{}, err
	}
	b.last = target
	log.Info("building segment",
		logging.Int("size", p.Size()),
		logging.String("ss", target.SS),
		logging.Int("left", target.Left),
		logging.Int("right", target.Right),
	)

	cfg, hit, err := b.Cache.Get(target.Key(), func() (BuildConfig, error) {
		return b.Builder.Configure(target)
	})
	if err != nil {
		return perturb.Delta{}, fmt.Errorf("bridge configure: %w", err)
	}
	if hit {
		log.Debug("reusing segment builder configuration")
	}

	closed, err := b.Builder.Build(ctx, cfg, target, p, rng)
	if err != nil {
		return perturb.Delta{}, fmt.Errorf("bridge build: %w", err)
	}
	delta := perturb.Delta{Operator: b.Name(), Status: perturb.FailRetry, Detail: target.SS}
	for i := target.Left; i < target.Left+target.Len(); i++ {
		delta.Residues = append(delta.Residues, i)
	}
	if closed {
		delta.Status = perturb.Success
	}
	return delta, nil
}
