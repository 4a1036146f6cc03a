// Package perturb holds the moves that propose a new conformation.
package perturb

import (
	"context"
	"fmt"

	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Status is the outcome an operator reports for one application.
type Status int

const (
	// Success means the pose now carries the proposed change.
	Success Status = iota
	// FailRetry means this attempt produced nothing usable. The caller
	// discards the candidate and may try again.
	FailRetry
	// FailDoNotRetry means the operator cannot produce further proposals.
	FailDoNotRetry
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case FailRetry:
		return "fail_retry"
	case FailDoNotRetry:
		return "fail_do_not_retry"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Delta describes what an operator changed.
type Delta struct {
	Operator string    `json:"operator"`
	Status   Status    `json:"status"`
	Residues []int     `json:"residues,omitempty"`
	Offsets  []float64 `json:"offsets,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Operator mutates a pose in place using the shared random stream.
type Operator interface {
	Name() string
	Apply(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error)
}

// Func adapts a function to Operator.
type Func struct {
	Label string
	Fn    func(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Apply(ctx context.Context, p *pose.Pose, rng random.Source) (Delta, error) {
	return f.Fn(ctx, p, rng)
}

func requirePose(p *pose.Pose) error {
	if p == nil || p.Size() == 0 {
		return fmt.Errorf("perturb: empty pose")
	}
	return nil
}

// proteinResidues lists the residues in [lo, hi] that take backbone moves.
func proteinResidues(p *pose.Pose, lo, hi int) []int {
	var out []int
	for i := lo; i <= hi; i++ {
		if p.IsProtein(i) {
			out = append(out, i)
		}
	}
	return out
}

func noCandidates(name string) Delta {
	return Delta{Operator: name, Status: FailDoNotRetry, Detail: "no protein residues"}
}
