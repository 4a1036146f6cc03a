package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"confsearch/internal/logging"
	"confsearch/internal/mc"
	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
	"confsearch/internal/refine"
	"confsearch/internal/score"
)

// Sink receives structural snapshots. Dump must not fail the search; a
// sink that cannot write logs and drops the snapshot.
type Sink interface {
	Dump(ctx context.Context, p *pose.Pose, label string)
}

// Observer is notified after every trial and once at the end of a run.
type Observer interface {
	ObserveTrial(t Trial)
	ObserveRun(r Result)
}

// Config wires the collaborators and settings of one search.
type Config struct {
	RunID     string
	Score     score.Function
	Operator  perturb.Operator
	Repacker  refine.Repacker
	Minimizer refine.Minimizer
	MoveMap   refine.MoveMap
	Random    random.Source
	Sink      Sink
	Observer  Observer
	Log       logging.Logger

	// Temperature <= 0 is accepted and makes every worsening trial fail.
	Temperature float64
	// IterationBudget is the number of trials. When zero the budget is
	// ceil(residues * IncreaseCycles).
	IterationBudget int
	IncreaseCycles  float64
	RecoverLow      bool
	// SnapshotInterval dumps the current pose every K trials; zero
	// disables snapshots.
	SnapshotInterval int
	SnapshotPrefix   string
	Seed             int64

	// Native, when set, is compared against the final pose with Compare
	// (CARMSD by default).
	Native  *pose.Pose
	Compare CompareFn
}

// Trial is the record of one iteration.
type Trial struct {
	Iteration int           `json:"iteration"`
	Operator  string        `json:"operator"`
	Status    string        `json:"status"`
	Scored    bool          `json:"scored"`
	Accepted  bool          `json:"accepted"`
	Proposed  float64       `json:"proposed_score"`
	Current   float64       `json:"current_score"`
	Best      float64       `json:"best_score"`
	Duration  time.Duration `json:"duration_ns"`
}

// Result is what a run reports. Final is owned by the caller.
type Result struct {
	RunID        string            `json:"run_id"`
	State        string            `json:"state"`
	StopReason   string            `json:"stop_reason,omitempty"`
	Iterations   int               `json:"iterations"`
	Budget       int               `json:"budget"`
	Accepted     int               `json:"accepted"`
	Rejected     int               `json:"rejected"`
	Retries      int               `json:"retries"`
	Temperature  float64           `json:"temperature"`
	InitialScore float64           `json:"initial_score"`
	FinalScore   float64           `json:"final_score"`
	BestScore    float64           `json:"best_score"`
	NativeMetric *float64          `json:"native_metric,omitempty"`
	Snapshots    []string          `json:"snapshots,omitempty"`
	Moves        []mc.MoveCounter  `json:"moves,omitempty"`
	Trajectory   []Trial           `json:"trajectory,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Final        *pose.Pose        `json:"-"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Stop reasons.
const (
	StopBudget    = "budget"
	StopExhausted = "operator_exhausted"
)

// Scheduler owns the current pose for the duration of a run. Trials are
// strictly sequential: trial i is accepted or reverted before trial i+1
// starts. A scheduler runs once.
type Scheduler struct {
	cfg   Config
	log   logging.Logger
	state State
	mc    *mc.MonteCarlo

	snapshots int
}

// New returns a scheduler in StateInit. Configuration is checked by Run so
// that a missing collaborator surfaces as StateFatal.
func New(cfg Config) *Scheduler {
	if cfg.Repacker == nil {
		cfg.Repacker = refine.NopRepacker{}
	}
	if cfg.Minimizer == nil {
		cfg.Minimizer = refine.NopMinimizer{}
	}
	if cfg.Random == nil {
		cfg.Random = random.New(cfg.Seed)
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshot"
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Native != nil && cfg.Compare == nil {
		cfg.Compare = CARMSD
	}
	return &Scheduler{
		cfg:   cfg,
		log:   logging.OrNop(cfg.Log).With(logging.String("run_id", cfg.RunID)),
		state: StateInit,
	}
}

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) RunID() string { return s.cfg.RunID }

// MonteCarlo exposes the acceptance engine once Run has started.
func (s *Scheduler) MonteCarlo() *mc.MonteCarlo { return s.mc }

// Budget resolves the number of trials for a pose of n residues.
func Budget(iterations int, increaseCycles float64, n int) int {
	if iterations > 0 {
		return iterations
	}
	if increaseCycles <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * increaseCycles))
}

// SnapshotLabel formats the label of the k-th snapshot.
func SnapshotLabel(prefix string, k int) string {
	return fmt.Sprintf("%s_%04d", prefix, k)
}

func (s *Scheduler) fatal(res *Result, stage string, err error) (Result, error) {
	s.state = StateFatal
	res.State = s.state.String()
	res.FinishedAt = time.Now().UTC()
	s.log.Error("search configuration error", logging.String("stage", stage), logging.Err(err))
	s.observeRun(*res)
	return *res, &FatalError{Stage: stage, Err: err}
}

func (s *Scheduler) abort(res *Result, err error) (Result, error) {
	s.state = StateAborted
	res.State = s.state.String()
	res.FinishedAt = time.Now().UTC()
	if s.mc != nil {
		st := s.mc.Stats()
		res.Accepted, res.Rejected = st.Accepted, st.Rejected
		res.BestScore = st.BestScore
	}
	s.log.Error("search aborted", logging.Int("iteration", res.Iterations), logging.Err(err))
	s.observeRun(*res)
	return *res, err
}

func (s *Scheduler) observeRun(res Result) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveRun(res)
	}
}

// Run searches from start, which is not modified. The returned error is a
// *FatalError for configuration problems, a *StepError for collaborator
// failures, or the context error if ctx was cancelled between trials.
func (s *Scheduler) Run(ctx context.Context, start *pose.Pose) (Result, error) {
	res := Result{
		RunID:       s.cfg.RunID,
		Temperature: s.cfg.Temperature,
		StartedAt:   time.Now().UTC(),
	}
	if s.state != StateInit {
		return res, &FatalError{Stage: "init", Err: ErrAlreadyRan}
	}
	switch {
	case s.cfg.Score == nil:
		return s.fatal(&res, "score", ErrNoScoreFunction)
	case s.cfg.Operator == nil:
		return s.fatal(&res, "operator", ErrNoOperator)
	case start == nil || start.Size() == 0:
		return s.fatal(&res, "pose", ErrNoPose)
	}
	res.Budget = Budget(s.cfg.IterationBudget, s.cfg.IncreaseCycles, start.Size())
	if res.Budget <= 0 {
		return s.fatal(&res, "budget", ErrNoBudget)
	}
	if s.cfg.Temperature <= 0 {
		s.log.Warn("temperature <= 0: every worsening trial will be rejected",
			logging.Float64("temperature", s.cfg.Temperature))
	}

	s.state = StateRunning
	current := start.Clone()
	currentScore, err := s.cfg.Score.Score(ctx, current)
	if err != nil {
		return s.abort(&res, &StepError{Iteration: 0, Step: "score", Err: err})
	}
	res.InitialScore = currentScore

	s.mc = mc.New(s.cfg.Temperature, s.cfg.Random)
	s.mc.SetLogger(s.log)
	s.mc.Reset(current, currentScore)

	s.log.Info("search started",
		logging.String("operator", s.cfg.Operator.Name()),
		logging.Int("residues", current.Size()),
		logging.Int("budget", res.Budget),
		logging.Float64("temperature", s.cfg.Temperature),
		logging.Float64("initial_score", currentScore),
	)
	s.snapshot(ctx, &res, current)

	res.StopReason = StopBudget
	for it := 1; it <= res.Budget; it++ {
		if err := ctx.Err(); err != nil {
			return s.abort(&res, err)
		}
		trial, next, nextScore, stop, err := s.step(ctx, it, current, currentScore)
		if err != nil {
			return s.abort(&res, err)
		}
		res.Iterations = it
		if stop {
			res.StopReason = StopExhausted
			s.log.Info("operator exhausted", logging.Int("iteration", it))
			break
		}
		if !trial.Scored {
			res.Retries++
		}
		if trial.Accepted {
			current, currentScore = next, nextScore
		}
		trial.Current = currentScore
		trial.Best = s.mc.BestScore()
		res.Trajectory = append(res.Trajectory, trial)
		if s.cfg.Observer != nil {
			s.cfg.Observer.ObserveTrial(trial)
		}

		if s.cfg.SnapshotInterval > 0 && it%s.cfg.SnapshotInterval == 0 {
			s.snapshot(ctx, &res, current)
		}
	}

	if s.cfg.RecoverLow && s.mc.RecoverLow(current) {
		currentScore = s.mc.BestScore()
		s.log.Info("recovered lowest scoring pose", logging.Float64("score", currentScore))
	}
	s.snapshot(ctx, &res, current)

	if s.cfg.Native != nil {
		metric, err := s.cfg.Compare(s.cfg.Native, current)
		if err != nil {
			s.log.Warn("native comparison failed", logging.Err(err))
		} else {
			res.NativeMetric = &metric
			s.log.Info("native comparison", logging.Float64("metric", metric))
		}
	}

	st := s.mc.Stats()
	s.state = StateTerminated
	res.State = s.state.String()
	res.Accepted, res.Rejected = st.Accepted, st.Rejected
	res.FinalScore = currentScore
	res.BestScore = st.BestScore
	res.Moves = s.mc.MoveCounters()
	res.Final = current
	res.FinishedAt = time.Now().UTC()

	s.mc.ShowCounters()
	s.log.Info("search finished",
		logging.String("stop_reason", res.StopReason),
		logging.Int("iterations", res.Iterations),
		logging.Int("accepted", res.Accepted),
		logging.Int("rejected", res.Rejected),
		logging.Int("retries", res.Retries),
		logging.Float64("final_score", res.FinalScore),
		logging.Float64("best_score", res.BestScore),
	)
	s.observeRun(res)
	return res, nil
}

// step runs one trial on a clone of current. The clone is returned only
// when the trial was accepted; otherwise current stays as it was.
func (s *Scheduler) step(ctx context.Context, it int, current *pose.Pose, currentScore float64) (Trial, *pose.Pose, float64, bool, error) {
	began := time.Now()
	candidate := current.Clone()
	trial := Trial{Iteration: it, Operator: s.cfg.Operator.Name()}

	delta, err := s.cfg.Operator.Apply(ctx, candidate, s.cfg.Random)
	if err != nil {
		return trial, nil, 0, false, &StepError{Iteration: it, Step: "perturb", Err: err}
	}
	if delta.Operator != "" {
		trial.Operator = delta.Operator
	}
	trial.Status = delta.Status.String()
	switch delta.Status {
	case perturb.FailDoNotRetry:
		return trial, nil, 0, true, nil
	case perturb.FailRetry:
		trial.Duration = time.Since(began)
		s.log.Debug("trial discarded", logging.Int("iteration", it), logging.String("operator", trial.Operator))
		return trial, nil, 0, false, nil
	}

	if err := s.cfg.Repacker.Repack(ctx, candidate, s.cfg.Score); err != nil {
		return trial, nil, 0, false, &StepError{Iteration: it, Step: "repack", Err: err}
	}
	if err := s.cfg.Minimizer.Minimize(ctx, candidate, s.cfg.Score, s.cfg.MoveMap); err != nil {
		return trial, nil, 0, false, &StepError{Iteration: it, Step: "minimize", Err: err}
	}
	proposed, err := s.cfg.Score.Score(ctx, candidate)
	if err != nil {
		return trial, nil, 0, false, &StepError{Iteration: it, Step: "score", Err: err}
	}

	trial.Scored = true
	trial.Proposed = proposed
	trial.Accepted = s.mc.EvaluateMove(trial.Operator, currentScore, proposed, candidate)
	trial.Duration = time.Since(began)
	s.log.Debug("trial",
		logging.Int("iteration", it),
		logging.String("operator", trial.Operator),
		logging.Float64("old", currentScore),
		logging.Float64("new", proposed),
		logging.Bool("accepted", trial.Accepted),
	)
	if !trial.Accepted {
		return trial, nil, 0, false, nil
	}
	return trial, candidate, proposed, false, nil
}

func (s *Scheduler) snapshot(ctx context.Context, res *Result, p *pose.Pose) {
	if s.cfg.Sink == nil || s.cfg.SnapshotInterval <= 0 {
		return
	}
	label := SnapshotLabel(s.cfg.SnapshotPrefix, s.snapshots)
	s.snapshots++
	s.cfg.Sink.Dump(ctx, p.Clone(), label)
	res.Snapshots = append(res.Snapshots, label)
}
