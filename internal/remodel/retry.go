package remodel

import (
	"context"
	"fmt"

	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Outcome summarizes a retry loop.
type Outcome struct {
	Status   perturb.Status `json:"status"`
	Attempts int            `json:"attempts"`
}

// Retry re-invokes an operator while it reports FailRetry, up to
// MaxAttempts times. Errors and FailDoNotRetry end the loop at once.
type Retry struct {
	Operator    perturb.Operator
	MaxAttempts int
}

func (r Retry) Run(ctx context.Context, p *pose.Pose, rng random.Source) (Outcome, error) {
	if r.Operator == nil {
		return Outcome{}, fmt.Errorf("retry: operator is required")
	}
	limit := r.MaxAttempts
	if limit <= 0 {
		limit = 1
	}
	out := Outcome{Status: perturb.FailRetry}
	for out.Attempts < limit {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts++
		d, err := r.Operator.Apply(ctx, p, rng)
		if err != nil {
			return out, err
		}
		out.Status = d.Status
		if d.Status != perturb.FailRetry {
			return out, nil
		}
	}
	return out, nil
}
