package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"confsearch/internal/logging"
	"confsearch/internal/model"
	"confsearch/internal/pose"
)

// Sink writes snapshots of one run to a Store. Write failures are logged
// and counted; they never reach the caller.
type Sink struct {
	store    Store
	runID    string
	log      logging.Logger
	written  atomic.Int64
	failures atomic.Int64
}

func NewSink(store Store, runID string, log logging.Logger) *Sink {
	return &Sink{
		store: store,
		runID: runID,
		log:   logging.OrNop(log).Named("sink"),
	}
}

func (s *Sink) RunID() string { return s.runID }

// NewSnapshot builds the stored form of a pose.
func NewSnapshot(runID, label string, p *pose.Pose) model.Snapshot {
	return model.Snapshot{
		VersionedRecord: Versioned(),
		ID:              uuid.NewString(),
		RunID:           runID,
		Label:           label,
		Sequence:        p.Sequence(),
		Secstruct:       p.Secstruct(),
		Fingerprint:     p.Fingerprint(),
		Pose:            p.Record(),
		CreatedAt:       time.Now().UTC(),
	}
}

func (s *Sink) Dump(ctx context.Context, p *pose.Pose, label string) {
	if s.store == nil || p == nil {
		return
	}
	snapshot := NewSnapshot(s.runID, label, p)
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		s.failures.Add(1)
		s.log.Warn("snapshot not written",
			logging.String("run_id", s.runID),
			logging.String("label", label),
			logging.Err(err),
		)
		return
	}
	s.written.Add(1)
	s.log.Debug("snapshot written", logging.String("label", label), logging.String("id", snapshot.ID))
}

func (s *Sink) Written() int { return int(s.written.Load()) }

func (s *Sink) Failures() int { return int(s.failures.Load()) }
