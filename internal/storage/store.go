package storage

import (
	"context"

	"confsearch/internal/model"
)

// Store persists snapshots, run summaries and trajectories.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (model.Snapshot, bool, error)
	ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)
	SaveRunSummary(ctx context.Context, summary model.RunSummary) error
	GetRunSummary(ctx context.Context, runID string) (model.RunSummary, bool, error)
	// ListRunSummaries returns the newest runs first; limit <= 0 returns all.
	ListRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error)
	SaveTrajectory(ctx context.Context, runID string, points []model.TrajectoryPoint) error
	GetTrajectory(ctx context.Context, runID string) ([]model.TrajectoryPoint, bool, error)
}
