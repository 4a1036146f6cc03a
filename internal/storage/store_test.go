package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsearch/internal/logging"
	"confsearch/internal/model"
	"confsearch/internal/pose"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite := NewSQLiteStore(filepath.Join(t.TempDir(), "confsearch.db"))
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func summary(runID string, started time.Time, best float64) model.RunSummary {
	return model.RunSummary{
		VersionedRecord: Versioned(),
		RunID:           runID,
		Kind:            "search",
		State:           "terminated",
		Accepted:        3,
		Rejected:        2,
		BestScore:       best,
		Final:           pose.FromSequence("ACD").Record(),
		StartedAt:       started,
		FinishedAt:      started.Add(time.Second),
	}
}

func TestStoreSnapshots(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))

			p := pose.FromSequence("ACDCA")
			first := NewSnapshot("run-1", "snapshot_0000", p)
			p.SetPhi(2, -60)
			second := NewSnapshot("run-1", "snapshot_0001", p)
			other := NewSnapshot("run-2", "snapshot_0000", p)
			for _, s := range []model.Snapshot{first, second, other} {
				require.NoError(t, store.SaveSnapshot(ctx, s))
			}

			got, ok, err := store.GetSnapshot(ctx, second.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "snapshot_0001", got.Label)
			restored, err := pose.FromRecord(got.Pose)
			require.NoError(t, err)
			assert.Equal(t, -60.0, restored.Phi(2))
			assert.Equal(t, p.Fingerprint(), restored.Fingerprint())

			list, err := store.ListSnapshots(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, second.ID, list[1].ID)

			_, ok, err = store.GetSnapshot(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRunSummariesAndTrajectory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))
			require.NoError(t, store.SaveRunSummary(ctx, summary("a", base, -1)))
			require.NoError(t, store.SaveRunSummary(ctx, summary("b", base.Add(time.Minute), -2)))
			require.NoError(t, store.SaveRunSummary(ctx, summary("c", base.Add(90*time.Millisecond), -3)))

			updated := summary("a", base, -9)
			require.NoError(t, store.SaveRunSummary(ctx, updated))
			got, ok, err := store.GetRunSummary(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, -9.0, got.BestScore)
			assert.True(t, base.Equal(got.StartedAt))

			list, err := store.ListRunSummaries(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"b", "c", "a"}, []string{list[0].RunID, list[1].RunID, list[2].RunID})

			list, err = store.ListRunSummaries(ctx, 1)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "b", list[0].RunID)

			points := []model.TrajectoryPoint{
				{Iteration: 1, Operator: "single_torsion", Status: "success", Scored: true, Accepted: true, Proposed: -1, Current: -1, Best: -1},
				{Iteration: 2, Operator: "single_torsion", Status: "fail_retry", Current: -1, Best: -1},
			}
			require.NoError(t, store.SaveTrajectory(ctx, "a", points))
			gotPoints, ok, err := store.GetTrajectory(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, points, gotPoints)

			_, ok, err = store.GetTrajectory(ctx, "zzz")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.SaveRunSummary(ctx, summary("x", time.Now(), 0))
			require.Error(t, err)
		})
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	s := summary("a", time.Now(), 0)
	s.SchemaVersion = 99
	data, err := EncodeRunSummary(s)
	require.NoError(t, err)
	_, err = DecodeRunSummary(data)
	require.ErrorIs(t, err, ErrVersionMismatch)

	snap := NewSnapshot("r", "l", pose.FromSequence("A"))
	snap.Pose.CodecVersion = 7
	data, err = EncodeSnapshot(snap)
	require.NoError(t, err)
	_, err = DecodeSnapshot(data)
	require.ErrorIs(t, err, pose.ErrVersionMismatch)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, CloseIfSupported(store))

	_, err = NewStore("unknown", "")
	require.Error(t, err)

	err = NewSQLiteStore("").Init(context.Background())
	require.Error(t, err)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) SaveSnapshot(context.Context, model.Snapshot) error {
	return errors.New("disk full")
}

func TestSinkSwallowsWriteErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.Init(ctx))
	sink := NewSink(mem, "run-9", logging.NewNopLogger())
	sink.Dump(ctx, pose.FromSequence("AC"), "snapshot_0000")
	sink.Dump(ctx, nil, "ignored")
	assert.Equal(t, 1, sink.Written())

	list, err := mem.ListSnapshots(ctx, "run-9")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AC", list[0].Sequence)

	bad := NewSink(&failingStore{}, "run-9", nil)
	assert.NotPanics(t, func() { bad.Dump(ctx, pose.FromSequence("AC"), "failed") })
	assert.Equal(t, 1, bad.Failures())
	assert.Equal(t, 0, bad.Written())
}
