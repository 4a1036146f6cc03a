package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
	"confsearch/internal/score"
)

// stepDown lowers phi of residue 1 by one degree and draws nothing from the
// random stream.
var stepDown = perturb.Func{Label: "step_down", Fn: func(_ context.Context, p *pose.Pose, _ random.Source) (perturb.Delta, error) {
	p.SetPhi(1, p.Phi(1)-1)
	return perturb.Delta{Status: perturb.Success, Residues: []int{1}}, nil
}}

func phiScore(scale float64) score.Func {
	return func(_ context.Context, p *pose.Pose) (float64, error) {
		return scale * p.Phi(1), nil
	}
}

func flatPose() *pose.Pose {
	return pose.New([]pose.Residue{{Name1: "A"}, {Name1: "A"}, {Name1: "A"}})
}

type labelSink struct{ labels []string }

func (s *labelSink) Dump(_ context.Context, _ *pose.Pose, label string) {
	s.labels = append(s.labels, label)
}

func TestMonotoneImprovementAcceptsEveryTrial(t *testing.T) {
	s := New(Config{
		Score:           phiScore(1),
		Operator:        stepDown,
		Temperature:     1,
		IterationBudget: 100,
		RecoverLow:      true,
		Seed:            7,
	})
	res, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, 100, res.Accepted)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, -100.0, res.FinalScore)
	assert.Equal(t, -100.0, res.BestScore)
	assert.Equal(t, -100.0, res.Final.Phi(1))
	require.Len(t, res.Trajectory, 100)
	assert.Equal(t, -100.0, res.Trajectory[99].Current)
}

func TestConstantWorseningAcceptCount(t *testing.T) {
	const seed = 20240611
	cases := []struct {
		name     string
		step     float64
		accepted int
	}{
		// exp(-10) per trial
		{name: "plus ten", step: 10, accepted: 0},
		// exp(-1) per trial
		{name: "plus one", step: 1, accepted: 32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := random.New(seed)
			s := New(Config{
				Score:           phiScore(-tc.step),
				Operator:        stepDown,
				Temperature:     1,
				IterationBudget: 100,
				Random:          rng,
			})
			res, err := s.Run(context.Background(), flatPose())
			require.NoError(t, err)
			assert.Equal(t, tc.accepted, res.Accepted)
			assert.Equal(t, 100-tc.accepted, res.Rejected)
			for _, tr := range res.Trajectory {
				assert.InDelta(t, tc.step, tr.Proposed-scoreBefore(res, tr), 1e-9)
			}
			// one draw per worsening trial: the next value is the 101st
			assert.Equal(t, 0.6915483360604903, rng.Uniform())
		})
	}
}

// scoreBefore returns the current score the trial was proposed from.
func scoreBefore(res Result, tr Trial) float64 {
	if tr.Iteration == 1 {
		return res.InitialScore
	}
	return res.Trajectory[tr.Iteration-2].Current
}

func TestMissingScoreFunctionIsFatal(t *testing.T) {
	s := New(Config{Operator: stepDown, IterationBudget: 5, Temperature: 1})
	_, err := s.Run(context.Background(), flatPose())
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "score", fatal.Stage)
	assert.ErrorIs(t, err, ErrNoScoreFunction)
	assert.Equal(t, StateFatal, s.State())
}

func TestMissingBudgetIsFatal(t *testing.T) {
	s := New(Config{Score: phiScore(1), Operator: stepDown, Temperature: 1})
	_, err := s.Run(context.Background(), flatPose())
	assert.ErrorIs(t, err, ErrNoBudget)
	assert.Equal(t, StateFatal, s.State())

	s = New(Config{Score: phiScore(1), Operator: stepDown})
	_, err = s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPose)
}

func TestScoreErrorAbortsRun(t *testing.T) {
	boom := errors.New("energy blew up")
	calls := 0
	fn := score.Func(func(_ context.Context, p *pose.Pose) (float64, error) {
		calls++
		if calls == 4 {
			return 0, boom
		}
		return p.Phi(1), nil
	})
	s := New(Config{Score: fn, Operator: stepDown, Temperature: 1, IterationBudget: 10})
	res, err := s.Run(context.Background(), flatPose())
	require.ErrorIs(t, err, boom)
	var step *StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, 3, step.Iteration)
	assert.Equal(t, "score", step.Step)
	assert.Equal(t, StateAborted, s.State())
	assert.Equal(t, 2, res.Accepted)
}

func TestFailRetryTrialsAreNotScored(t *testing.T) {
	n := 0
	op := perturb.Func{Label: "flaky", Fn: func(_ context.Context, p *pose.Pose, _ random.Source) (perturb.Delta, error) {
		n++
		p.SetPhi(1, p.Phi(1)-1)
		if n%2 == 0 {
			return perturb.Delta{Status: perturb.FailRetry}, nil
		}
		return perturb.Delta{Status: perturb.Success}, nil
	}}
	s := New(Config{Score: phiScore(1), Operator: op, Temperature: 1, IterationBudget: 10})
	res, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Retries)
	assert.Equal(t, 5, res.Accepted)
	assert.Equal(t, -5.0, res.FinalScore)
}

func TestExhaustedOperatorTerminates(t *testing.T) {
	n := 0
	op := perturb.Func{Label: "finite", Fn: func(_ context.Context, p *pose.Pose, _ random.Source) (perturb.Delta, error) {
		n++
		if n > 3 {
			return perturb.Delta{Status: perturb.FailDoNotRetry}, nil
		}
		p.SetPhi(1, p.Phi(1)-1)
		return perturb.Delta{Status: perturb.Success}, nil
	}}
	s := New(Config{Score: phiScore(1), Operator: op, Temperature: 1, IterationBudget: 10})
	res, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, StopExhausted, res.StopReason)
	assert.Equal(t, 3, res.Accepted)
	assert.Len(t, res.Trajectory, 3)
}

func TestSnapshotsEveryInterval(t *testing.T) {
	sink := &labelSink{}
	s := New(Config{
		Score:            phiScore(1),
		Operator:         stepDown,
		Temperature:      1,
		IterationBudget:  10,
		SnapshotInterval: 3,
		SnapshotPrefix:   "traj",
		Sink:             sink,
	})
	res, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	want := []string{"traj_0000", "traj_0001", "traj_0002", "traj_0003", "traj_0004"}
	assert.Equal(t, want, sink.labels)
	assert.Equal(t, want, res.Snapshots)
}

func TestRecoverLowRestoresBest(t *testing.T) {
	// alternate between a good and a bad move at zero temperature: bad
	// moves are rejected, so the best is the last accepted state
	n := 0
	op := perturb.Func{Label: "zigzag", Fn: func(_ context.Context, p *pose.Pose, _ random.Source) (perturb.Delta, error) {
		n++
		if n%2 == 1 {
			p.SetPhi(1, p.Phi(1)-2)
		} else {
			p.SetPhi(1, p.Phi(1)+5)
		}
		return perturb.Delta{Status: perturb.Success}, nil
	}}
	s := New(Config{Score: phiScore(1), Operator: op, Temperature: 0, IterationBudget: 6, RecoverLow: true})
	res, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accepted)
	assert.Equal(t, 3, res.Rejected)
	assert.Equal(t, -6.0, res.FinalScore)
	assert.Equal(t, res.BestScore, res.FinalScore)
}

func TestStartPoseIsNotModified(t *testing.T) {
	start := flatPose()
	before := start.Clone()
	s := New(Config{Score: phiScore(1), Operator: stepDown, Temperature: 1, IterationBudget: 5})
	_, err := s.Run(context.Background(), start)
	require.NoError(t, err)
	assert.True(t, before.Equal(start))

	_, err = s.Run(context.Background(), start)
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

func TestBudgetFromIncreaseCycles(t *testing.T) {
	assert.Equal(t, 7, Budget(7, 3, 10))
	assert.Equal(t, 25, Budget(0, 2.5, 10))
	assert.Equal(t, 4, Budget(0, 1.3, 3))
	assert.Equal(t, 0, Budget(0, 0, 10))
}

func TestNativeComparison(t *testing.T) {
	native := pose.FromSequence("AAAAA")
	start := native.Clone()
	start.SetPhi(3, -57)
	start.SetPsi(3, -47)
	s := New(Config{Score: phiScore(1), Operator: stepDown, Temperature: 1, IterationBudget: 3, Native: native})
	res, err := s.Run(context.Background(), start)
	require.NoError(t, err)
	require.NotNil(t, res.NativeMetric)
	assert.Greater(t, *res.NativeMetric, 0.0)

	d, err := CARMSD(native, native.Clone())
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-12)
	_, err = CARMSD(native, pose.FromSequence("AA"))
	assert.Error(t, err)
}

func TestCARMSDSuperimposesRigidMotion(t *testing.T) {
	trace := pose.FromSequence("AAAAAAAA")
	trace.SetPsi(3, -47)
	trace.SetPhi(4, -57)
	ref := trace.Coords()

	moved := make([]pose.Vec3, len(ref))
	for i, x := range ref {
		moved[i] = r3.Add(r3.Rotate(x, 1.1, pose.Vec3{X: 1, Y: 2, Z: -0.5}), pose.Vec3{X: 4, Y: -3, Z: 7})
	}
	d, err := superposedRMSD(ref, moved)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)

	centreOnly := 0.0
	a, b := centred(ref), centred(moved)
	for i := range a {
		centreOnly += r3.Norm2(r3.Sub(a[i], b[i]))
	}
	assert.Greater(t, centreOnly, 1.0)
}

type countingObserver struct {
	trials int
	runs   int
	states []string
}

func (o *countingObserver) ObserveTrial(Trial) { o.trials++ }

func (o *countingObserver) ObserveRun(r Result) {
	o.runs++
	o.states = append(o.states, r.State)
}

func TestObserverSeesEveryTrial(t *testing.T) {
	obs := &countingObserver{}
	s := New(Config{Score: phiScore(1), Operator: stepDown, Temperature: 1, IterationBudget: 12, Observer: obs})
	_, err := s.Run(context.Background(), flatPose())
	require.NoError(t, err)
	assert.Equal(t, 12, obs.trials)
	assert.Equal(t, 1, obs.runs)
}

func TestObserverSeesFailedRuns(t *testing.T) {
	obs := &countingObserver{}
	s := New(Config{Operator: stepDown, Temperature: 1, IterationBudget: 3, Observer: obs})
	_, err := s.Run(context.Background(), flatPose())
	require.ErrorIs(t, err, ErrNoScoreFunction)

	boom := errors.New("no energy")
	failing := score.Func(func(context.Context, *pose.Pose) (float64, error) { return 0, boom })
	s = New(Config{Score: failing, Operator: stepDown, Temperature: 1, IterationBudget: 3, Observer: obs})
	_, err = s.Run(context.Background(), flatPose())
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, obs.runs)
	assert.Equal(t, []string{"fatal", "aborted"}, obs.states)
}
