package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"confsearch/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	snapshots    map[string]model.Snapshot
	runSnapshots map[string][]string
	runs         map[string]model.RunSummary
	trajectories map[string][]model.TrajectoryPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[string]model.Snapshot)
	s.runSnapshots = make(map[string][]string)
	s.runs = make(map[string]model.RunSummary)
	s.trajectories = make(map[string][]model.TrajectoryPoint)
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if _, exists := s.snapshots[snapshot.ID]; !exists {
		s.runSnapshots[snapshot.RunID] = append(s.runSnapshots[snapshot.RunID], snapshot.ID)
	}
	s.snapshots[snapshot.ID] = snapshot
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[id]
	return snapshot, ok, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, runID string) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.runSnapshots[runID]
	out := make([]model.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.snapshots[id])
	}
	return out, nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, runID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.runs[runID]
	return summary, ok, nil
}

func (s *MemoryStore) ListRunSummaries(_ context.Context, limit int) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunSummary, 0, len(s.runs))
	for _, summary := range s.runs {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, runID string, points []model.TrajectoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trajectories[runID] = append([]model.TrajectoryPoint(nil), points...)
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) ([]model.TrajectoryPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TrajectoryPoint(nil), points...), true, nil
}
