// Package confsearch is the public entry point of the engine: it wires
// configuration, operators, refiners, persistence and metrics around the
// Metropolis scheduler.
package confsearch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"confsearch/internal/config"
	"confsearch/internal/logging"
	"confsearch/internal/metrics"
	"confsearch/internal/model"
	"confsearch/internal/perturb"
	"confsearch/internal/pose"
	"confsearch/internal/random"
	"confsearch/internal/refine"
	"confsearch/internal/remodel"
	"confsearch/internal/rotamer"
	"confsearch/internal/score"
	"confsearch/internal/search"
	"confsearch/internal/stats"
	"confsearch/internal/storage"
)

const (
	KindSearch = "search"
	KindBridge = "bridge"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	Logger logging.Logger
	// Metrics receives trial and closure observations when set.
	Metrics *metrics.Collector
	// ArtifactsDir overrides search.artifacts_dir. "-" disables artifacts.
	ArtifactsDir string
}

type Client struct {
	cfg     config.Config
	store   storage.Store
	log     logging.Logger
	metrics *metrics.Collector

	artifactsDir string

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	Start *pose.Pose
	// Native, when set, is compared with the final pose.
	Native *pose.Pose
	RunID  string
	// Score overrides search.score_function.
	Score score.Function
	// Zero values keep the configured setting.
	Operator    string
	Iterations  int
	Temperature float64
	Seed        int64
}

type RunSummary struct {
	model.RunSummary
	ArtifactsDir string                  `json:"artifacts_dir,omitempty"`
	Snapshots    []string                `json:"snapshots,omitempty"`
	Trajectory   []model.TrajectoryPoint `json:"trajectory,omitempty"`
	Final        *pose.Pose              `json:"-"`
}

type BridgeRequest struct {
	Start       *pose.Pose
	RunID       string
	Motif       string
	Chain1End   int
	Chain2Begin int
	// Overlap < 0 keeps the configured overlap.
	Overlap     int
	MaxAttempts int
	Seed        int64
	Score       score.Function
}

type BridgeSummary struct {
	model.RunSummary
	Target       remodel.Target `json:"target"`
	Status       string         `json:"status"`
	Attempts     int            `json:"attempts"`
	ArtifactsDir string         `json:"artifacts_dir,omitempty"`
	Final        *pose.Pose     `json:"-"`
}

type RotamerRequest struct {
	Start          *pose.Pose
	Residue        int
	Explosion      int
	IncludeCurrent bool
	// MaxScore rejects rotamers scoring above it when non-nil.
	MaxScore *float64
	MaxSteps int
	Score    score.Function
}

type RotamerStep struct {
	Step   int       `json:"step"`
	Status string    `json:"status"`
	Chi    []float64 `json:"chi,omitempty"`
	Score  float64   `json:"score"`
}

type RunDetail struct {
	Summary    model.RunSummary
	Trajectory []model.TrajectoryPoint
	Snapshots  []model.Snapshot
	// Config is the recorded run configuration, when artifacts exist.
	Config *stats.RunConfig
}

func New(opts Options) (*Client, error) {
	cfg := config.Default()
	if opts.Config != nil {
		copied := *opts.Config
		cfg = &copied
		config.ApplyDefaults(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Store.Kind, cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}

	artifactsDir := cfg.Search.ArtifactsDir
	if opts.ArtifactsDir != "" {
		artifactsDir = opts.ArtifactsDir
	}
	if artifactsDir == "-" {
		artifactsDir = ""
	}

	return &Client{
		cfg:          *cfg,
		store:        store,
		log:          logging.OrNop(opts.Logger),
		metrics:      opts.Metrics,
		artifactsDir: artifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Config returns the resolved configuration.
func (c *Client) Config() config.Config { return c.cfg }

func (c *Client) ensureStore(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func (c *Client) scoreFunction(override score.Function) (score.Function, error) {
	if override != nil {
		return override, nil
	}
	return score.FromName(c.cfg.Search.ScoreFunction)
}

func (c *Client) refiners() (refine.Repacker, refine.Minimizer) {
	var (
		repacker  refine.Repacker  = refine.NopRepacker{}
		minimizer refine.Minimizer = refine.NopMinimizer{}
	)
	if c.cfg.Refine.Repack {
		lib := rotamer.DefaultLibrary()
		lib.Explosion = c.cfg.Refine.Explosion
		repacker = refine.GreedyRepacker{Library: lib, Rounds: 1}
	}
	if c.cfg.Refine.Minimize {
		m := refine.DefaultMinimizer()
		m.Tolerance = c.cfg.Refine.MinTolerance
		m.MaxIter = c.cfg.Refine.MinMaxIter
		minimizer = m
	}
	return repacker, minimizer
}

// Run performs one Metropolis search from req.Start and persists its
// summary, trajectory and artifacts. A run that fails after starting is
// still persisted; its error is returned along with the summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Start == nil {
		return RunSummary{}, search.ErrNoPose
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	sc := c.cfg.Search
	if req.Operator != "" {
		sc.Operator = req.Operator
	}
	if req.Iterations > 0 {
		sc.IterationBudget = req.Iterations
	}
	if req.Temperature != 0 {
		sc.Temperature = req.Temperature
	}
	if req.Seed != 0 {
		sc.Seed = req.Seed
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	op, err := perturb.FromConfig(sc.Operator, perturb.Params{
		MaxDelta:       c.cfg.Perturb.MaxDeltaTorsion,
		LocalityRadius: c.cfg.Perturb.LocalityRadius,
		Level:          c.cfg.Perturb.Level,
		RamaBiased:     c.cfg.Perturb.RamaBiased,
		PivotVariance:  c.cfg.Perturb.PivotVariance,
	})
	if err != nil {
		return RunSummary{}, err
	}
	fn, err := c.scoreFunction(req.Score)
	if err != nil {
		return RunSummary{}, err
	}
	repacker, minimizer := c.refiners()

	log := c.log.With(logging.String("run_id", runID))
	sink := storage.NewSink(c.store, runID, log)
	cfg := search.Config{
		RunID:            runID,
		Score:            fn,
		Operator:         op,
		Repacker:         repacker,
		Minimizer:        minimizer,
		MoveMap:          refine.AllMovable(),
		Random:           random.New(sc.Seed),
		Sink:             sink,
		Log:              log,
		Temperature:      sc.Temperature,
		IterationBudget:  sc.IterationBudget,
		IncreaseCycles:   sc.IncreaseCycles,
		RecoverLow:       sc.RecoverLow,
		SnapshotInterval: sc.SnapshotInterval,
		SnapshotPrefix:   sc.SnapshotPrefix,
		Seed:             sc.Seed,
		Native:           req.Native,
	}
	if c.metrics != nil {
		cfg.Observer = c.metrics
	}

	res, runErr := search.New(cfg).Run(ctx, req.Start)

	summary := model.RunSummary{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Kind:            KindSearch,
		State:           res.State,
		StopReason:      res.StopReason,
		Operator:        op.Name(),
		Seed:            sc.Seed,
		Temperature:     sc.Temperature,
		Budget:          res.Budget,
		Iterations:      res.Iterations,
		Accepted:        res.Accepted,
		Rejected:        res.Rejected,
		Retries:         res.Retries,
		InitialScore:    res.InitialScore,
		FinalScore:      res.FinalScore,
		BestScore:       res.BestScore,
		NativeMetric:    res.NativeMetric,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
	summary.SnapshotsWritten, summary.SnapshotFailures = sink.Written(), sink.Failures()
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	final := res.Final
	if final == nil {
		final = req.Start.Clone()
	}
	summary.Final = final.Record()

	points := trajectoryPoints(res.Trajectory)
	out := RunSummary{
		RunSummary: summary,
		Snapshots:  res.Snapshots,
		Trajectory: points,
		Final:      final,
	}

	moves := make([]stats.MoveStat, 0, len(res.Moves))
	for _, m := range res.Moves {
		moves = append(moves, stats.MoveStat(m))
	}
	dir, err := c.persist(ctx, summary, points, moves, stats.RunConfig{
		RunID:            runID,
		Kind:             KindSearch,
		Sequence:         req.Start.Sequence(),
		Operator:         op.Name(),
		ScoreFunction:    sc.ScoreFunction,
		Temperature:      sc.Temperature,
		IterationBudget:  sc.IterationBudget,
		IncreaseCycles:   sc.IncreaseCycles,
		RecoverLow:       sc.RecoverLow,
		SnapshotInterval: sc.SnapshotInterval,
		SnapshotPrefix:   sc.SnapshotPrefix,
		Seed:             sc.Seed,
		MaxDelta:         c.cfg.Perturb.MaxDeltaTorsion,
		LocalityRadius:   c.cfg.Perturb.LocalityRadius,
		RamaBiased:       c.cfg.Perturb.RamaBiased,
		Repack:           c.cfg.Refine.Repack,
		Minimize:         c.cfg.Refine.Minimize,
	})
	out.ArtifactsDir = dir
	return out, errors.Join(runErr, err)
}

func trajectoryPoints(trials []search.Trial) []model.TrajectoryPoint {
	points := make([]model.TrajectoryPoint, 0, len(trials))
	for _, t := range trials {
		points = append(points, model.TrajectoryPoint{
			Iteration: t.Iteration,
			Operator:  t.Operator,
			Status:    t.Status,
			Scored:    t.Scored,
			Accepted:  t.Accepted,
			Proposed:  t.Proposed,
			Current:   t.Current,
			Best:      t.Best,
		})
	}
	return points
}

func (c *Client) persist(ctx context.Context, summary model.RunSummary, points []model.TrajectoryPoint, moves []stats.MoveStat, runCfg stats.RunConfig) (string, error) {
	if err := c.store.SaveRunSummary(ctx, summary); err != nil {
		return "", fmt.Errorf("save run summary: %w", err)
	}
	if err := c.store.SaveTrajectory(ctx, summary.RunID, points); err != nil {
		return "", fmt.Errorf("save trajectory: %w", err)
	}
	if c.artifactsDir == "" {
		return "", nil
	}
	dir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:     runCfg,
		Summary:    summary,
		Trajectory: points,
		Moves:      moves,
	})
	if err != nil {
		return "", err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntry(summary, runCfg.Operator)); err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}

// Bridge rebuilds a loop between two junction residues, retrying while the
// closure check fails. The input pose is never modified.
func (c *Client) Bridge(ctx context.Context, req BridgeRequest) (BridgeSummary, error) {
	if req.Start == nil {
		return BridgeSummary{}, search.ErrNoPose
	}
	if err := c.ensureStore(ctx); err != nil {
		return BridgeSummary{}, err
	}

	bc := c.cfg.Bridge
	if req.Motif != "" {
		bc.Motif = req.Motif
	}
	if req.Chain1End > 0 {
		bc.Chain1End = req.Chain1End
	}
	if req.Chain2Begin > 0 {
		bc.Chain2Begin = req.Chain2Begin
	}
	if req.Overlap >= 0 {
		bc.Overlap = req.Overlap
	}
	if req.MaxAttempts > 0 {
		bc.MaxAttempts = req.MaxAttempts
	}
	seed := c.cfg.Search.Seed
	if req.Seed != 0 {
		seed = req.Seed
	}
	if strings.TrimSpace(bc.Motif) == "" {
		return BridgeSummary{}, fmt.Errorf("bridge: %w", remodel.ErrInvalidMotif)
	}
	fn, err := c.scoreFunction(req.Score)
	if err != nil {
		return BridgeSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := c.log.With(logging.String("run_id", runID))

	bridge := remodel.NewBridge(bc.Motif, bc.Chain1End, bc.Chain2Begin, bc.Overlap)
	bridge.Log = log
	sink := storage.NewSink(c.store, runID, log)
	verifier := &remodel.ClosureVerifier{
		Bridge: bridge,
		Dumper: sink,
		Log:    log,
	}
	if c.metrics != nil {
		verifier.Recorder = c.metrics
	}

	started := time.Now().UTC()
	work := req.Start.Clone()
	initial, err := fn.Score(ctx, work)
	if err != nil {
		return BridgeSummary{}, err
	}
	outcome, runErr := remodel.Retry{Operator: verifier, MaxAttempts: bc.MaxAttempts}.Run(ctx, work, random.New(seed))

	state := search.StateTerminated.String()
	if runErr != nil {
		state = search.StateAborted.String()
	}
	finalScore := initial
	if runErr == nil && outcome.Status == perturb.Success {
		if finalScore, err = fn.Score(ctx, work); err != nil {
			runErr = err
			state = search.StateAborted.String()
		}
	}

	summary := model.RunSummary{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Kind:            KindBridge,
		State:           state,
		StopReason:      outcome.Status.String(),
		Operator:        verifier.Name(),
		Seed:            seed,
		Budget:          bc.MaxAttempts,
		Iterations:      outcome.Attempts,
		InitialScore:    initial,
		FinalScore:      finalScore,
		BestScore:       finalScore,
		Final:           work.Record(),
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
	}
	summary.SnapshotsWritten, summary.SnapshotFailures = sink.Written(), sink.Failures()
	if outcome.Status == perturb.Success {
		summary.Accepted = 1
	}
	summary.Rejected = outcome.Attempts - summary.Accepted
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	out := BridgeSummary{
		RunSummary: summary,
		Target:     bridge.LastTarget(),
		Status:     outcome.Status.String(),
		Attempts:   outcome.Attempts,
		Final:      work,
	}
	dir, err := c.persist(ctx, summary, nil, nil, stats.RunConfig{
		RunID:         runID,
		Kind:          KindBridge,
		Sequence:      req.Start.Sequence(),
		Operator:      verifier.Name(),
		ScoreFunction: c.cfg.Search.ScoreFunction,
		Seed:          seed,
		Motif:         bc.Motif,
		Overlap:       bc.Overlap,
	})
	out.ArtifactsDir = dir
	return out, errors.Join(runErr, err)
}

// Rotamers steps through the rotamer ensemble of one residue, adopting each
// rotamer the filter accepts, until the ensemble is exhausted or MaxSteps
// applications were made.
func (c *Client) Rotamers(ctx context.Context, req RotamerRequest) ([]RotamerStep, *pose.Pose, error) {
	if req.Start == nil {
		return nil, nil, search.ErrNoPose
	}
	fn, err := c.scoreFunction(req.Score)
	if err != nil {
		return nil, nil, err
	}
	lib := rotamer.DefaultLibrary()
	lib.Explosion = req.Explosion

	var filter rotamer.Filter = rotamer.TrueFilter{}
	if req.MaxScore != nil {
		limit := *req.MaxScore
		filter = rotamer.FilterFunc(func(ctx context.Context, p *pose.Pose) (bool, error) {
			s, err := fn.Score(ctx, p)
			if err != nil {
				return false, err
			}
			return s <= limit, nil
		})
	}
	op := &rotamer.TryRotamers{
		Residue:        req.Residue,
		Library:        lib,
		IncludeCurrent: req.IncludeCurrent,
		Filter:         filter,
		Log:            c.log,
	}

	work := req.Start.Clone()
	var steps []RotamerStep
	for i := 1; req.MaxSteps <= 0 || i <= req.MaxSteps; i++ {
		d, err := op.Apply(ctx, work, nil)
		if err != nil {
			return steps, work, err
		}
		if d.Status == perturb.FailDoNotRetry {
			break
		}
		s, err := fn.Score(ctx, work)
		if err != nil {
			return steps, work, err
		}
		steps = append(steps, RotamerStep{
			Step:   i,
			Status: d.Status.String(),
			Chi:    work.Chi(req.Residue),
			Score:  s,
		})
	}
	return steps, work, nil
}

// Runs lists persisted run summaries, newest first. Runs recorded only in
// the artifacts directory, such as those of an earlier process using a
// memory store, are included.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	runs, err := c.store.ListRunSummaries(ctx, limit)
	if err != nil {
		return nil, err
	}
	if c.artifactsDir == "" {
		return runs, nil
	}

	index, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("read run index: %w", err)
	}
	seen := make(map[string]struct{}, len(runs))
	for _, r := range runs {
		seen[r.RunID] = struct{}{}
	}
	for _, entry := range index {
		if _, ok := seen[entry.RunID]; ok {
			continue
		}
		summary, ok, err := stats.ReadRunSummary(c.artifactsDir, entry.RunID)
		if err != nil {
			return nil, fmt.Errorf("read run summary %s: %w", entry.RunID, err)
		}
		if !ok {
			c.log.Warn("indexed run has no summary", logging.String("run_id", entry.RunID))
			continue
		}
		seen[entry.RunID] = struct{}{}
		runs = append(runs, summary)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Show returns a persisted run with its trajectory and snapshots. When the
// store has no record of the run, the artifacts directory is consulted;
// snapshots are only kept in the store.
func (c *Client) Show(ctx context.Context, runID string) (RunDetail, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunDetail{}, err
	}
	summary, ok, err := c.store.GetRunSummary(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return c.showArtifacts(runID)
	}
	points, _, err := c.store.GetTrajectory(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	snapshots, err := c.store.ListSnapshots(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	detail := RunDetail{Summary: summary, Trajectory: points, Snapshots: snapshots}
	if c.artifactsDir != "" {
		if cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID); err == nil && ok {
			detail.Config = &cfg
		}
	}
	return detail, nil
}

func (c *Client) showArtifacts(runID string) (RunDetail, error) {
	if c.artifactsDir == "" {
		return RunDetail{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	summary, ok, err := stats.ReadRunSummary(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	points, _, err := stats.ReadTrajectory(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	detail := RunDetail{Summary: summary, Trajectory: points}
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		detail.Config = &cfg
	}
	return detail, nil
}

// Export copies the artifacts of a run to outDir.
func (c *Client) Export(_ context.Context, runID, outDir string) (string, error) {
	if c.artifactsDir == "" {
		return "", errors.New("artifacts are disabled")
	}
	return stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
}
