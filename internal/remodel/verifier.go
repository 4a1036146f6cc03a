package remodel

import (
	"context"

	"confsearch/internal/logging"
	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Dump labels for rejected candidates.
const (
	LabelBuildFailed = "failed"
	LabelSSFailed    = "ss_failed"
)

// Dumper receives rejected candidates for diagnosis. Write errors are the
// dumper's concern.
type Dumper interface {
	Dump(ctx context.Context, p *pose.Pose, label string)
}

// Recorder observes closure outcomes.
type Recorder interface {
	ObserveClosure(status string)
}

// ClosureVerifier runs a bridge on a copy of the pose and adopts the copy
// only when the builder closed the segment and the re-derived secondary
// structure matches the target at every position. Otherwise it reports
// FailRetry, dumps the candidate and leaves the input untouched.
type ClosureVerifier struct {
	Bridge   *Bridge
	Dumper   Dumper
	Recorder Recorder
	Log      logging.Logger
}

func (*ClosureVerifier) Name() string { return "closure_verifier" }

// Mismatch returns the first position where actual differs from wanted over
// the rebuilt span starting at left, or -1.
func Mismatch(wanted, actual string, left int) int {
	for i := 0; i < len(wanted); i++ {
		k := left - 1 + i
		if k < 0 || k >= len(actual) || actual[k] != wanted[i] {
			return i
		}
	}
	return -1
}

func (v *ClosureVerifier) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (perturb.Delta, error) {
	log := logging.OrNop(v.Log)
	candidate := p.Clone()
	delta, err := v.Bridge.Apply(ctx, candidate, rng)
	if err != nil {
		return perturb.Delta{}, err
	}
	delta.Operator = v.Name()

	if delta.Status != perturb.Success {
		log.Info("segment did not close")
		v.dump(ctx, candidate, LabelBuildFailed)
		v.record(perturb.FailRetry)
		delta.Status = perturb.FailRetry
		return delta, nil
	}

	target := v.Bridge.LastTarget()
	actual := candidate.Secstruct()
	if pos := Mismatch(target.SS, actual, target.Left); pos >= 0 {
		log.Info("connection does not match the desired secondary structure",
			logging.String("wanted", target.SS),
			logging.String("actual", actual),
			logging.Int("position", target.Left+pos),
		)
		v.dump(ctx, candidate, LabelSSFailed)
		v.record(perturb.FailRetry)
		delta.Status = perturb.FailRetry
		return delta, nil
	}

	log.Info("closed the segment", logging.String("abego", candidate.ABEGO()))
	p.Assign(candidate)
	v.record(perturb.Success)
	return delta, nil
}

func (v *ClosureVerifier) dump(ctx context.Context, p *pose.Pose, label string) {
	if v.Dumper != nil {
		v.Dumper.Dump(ctx, p, label)
	}
}

func (v *ClosureVerifier) record(s perturb.Status) {
	if v.Recorder != nil {
		v.Recorder.ObserveClosure(s.String())
	}
}
