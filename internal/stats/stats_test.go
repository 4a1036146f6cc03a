package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsearch/internal/model"
)

func samplePoints() []model.TrajectoryPoint {
	return []model.TrajectoryPoint{
		{Iteration: 1, Operator: "single_torsion", Status: "success", Scored: true, Accepted: true, Proposed: -1.5, Current: -1.5, Best: -1.5},
		{Iteration: 2, Operator: "single_torsion", Status: "success", Scored: true, Proposed: 3, Current: -1.5, Best: -1.5},
		{Iteration: 3, Operator: "bridge", Status: "fail_retry", Current: -1.5, Best: -1.5},
		{Iteration: 4, Operator: "single_torsion", Status: "success", Scored: true, Accepted: true, Proposed: -4.5, Current: -4.5, Best: -4.5},
	}
}

func TestWriteAndReadRunArtifacts(t *testing.T) {
	base := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{RunID: "run-1", Kind: "search", Operator: "single_torsion", Temperature: 1, IterationBudget: 4, Seed: 3},
		Summary: model.RunSummary{
			RunID:     "run-1",
			Kind:      "search",
			State:     "terminated",
			Accepted:  2,
			Rejected:  1,
			BestScore: -4.5,
			StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Trajectory: samplePoints(),
		Moves:      []MoveStat{{Move: "single_torsion", Trials: 3, Accepted: 2, SumDelta: -4.5}},
	}
	runDir, err := WriteRunArtifacts(base, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), runDir)

	cfg, ok, err := ReadRunConfig(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	summary, ok, err := ReadRunSummary(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -4.5, summary.BestScore)

	points, ok, err := ReadTrajectory(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, samplePoints(), points)

	_, ok, err = ReadTrajectory(base, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	out := t.TempDir()
	dst, err := ExportRunArtifacts(base, "run-1", out)
	require.NoError(t, err)
	for _, f := range []string{configFile, summaryFile, trajectoryFile, movesFile} {
		_, err := os.Stat(filepath.Join(dst, f))
		assert.NoError(t, err, f)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.Error(t, err)
	require.Error(t, WriteRunConfig(t.TempDir(), "a", RunConfig{RunID: "b"}))
}

func TestRunIndexNewestFirstAndReplaces(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00.000000000Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00.000000000Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00.000000000Z", BestScore: -3}))

	index, err := ListRunIndex(base)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "b", index[0].RunID)
	assert.Equal(t, -3.0, index[1].BestScore)
}

func TestSummarize(t *testing.T) {
	s := Summarize(samplePoints())
	assert.Equal(t, 4, s.Trials)
	assert.Equal(t, 3, s.Scored)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, 2, s.Accepted)
	assert.InDelta(t, 2.0/3.0, s.AcceptRate, 1e-12)
	assert.Equal(t, -4.5, s.MinCurrent)
	assert.InDelta(t, -2.25, s.MeanCurrent, 1e-12)
	assert.Equal(t, -4.5, s.FinalBest)

	assert.Equal(t, TrajectoryStats{}, Summarize(nil))
}

func TestIndexEntry(t *testing.T) {
	e := IndexEntry(model.RunSummary{RunID: "r", Accepted: 1, Rejected: 3, StartedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}, "bridge")
	assert.Equal(t, 0.25, e.AcceptRate)
	assert.Equal(t, "bridge", e.Operator)
	assert.Equal(t, "2026-05-01T00:00:00.000000000Z", e.CreatedAtUTC)
}
