package model

import (
	"time"

	"confsearch/internal/pose"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Snapshot is one structural dump written during or after a search.
type Snapshot struct {
	VersionedRecord
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Label       string      `json:"label"`
	Sequence    string      `json:"sequence"`
	Secstruct   string      `json:"secstruct"`
	Fingerprint string      `json:"fingerprint"`
	Pose        pose.Record `json:"pose"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RunSummary is the persisted outcome of one search.
type RunSummary struct {
	VersionedRecord
	RunID        string      `json:"run_id"`
	Kind         string      `json:"kind"`
	State        string      `json:"state"`
	StopReason   string      `json:"stop_reason,omitempty"`
	Operator     string      `json:"operator"`
	Seed         int64       `json:"seed"`
	Temperature  float64     `json:"temperature"`
	Budget       int         `json:"budget"`
	Iterations   int         `json:"iterations"`
	Accepted     int         `json:"accepted"`
	Rejected     int         `json:"rejected"`
	Retries      int         `json:"retries"`
	InitialScore float64     `json:"initial_score"`
	FinalScore   float64     `json:"final_score"`
	BestScore    float64     `json:"best_score"`
	NativeMetric *float64    `json:"native_metric,omitempty"`
	Error        string      `json:"error,omitempty"`
	Final        pose.Record `json:"final"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`

	// Snapshot writes that reached and missed the store.
	SnapshotsWritten int `json:"snapshots_written,omitempty"`
	SnapshotFailures int `json:"snapshot_failures,omitempty"`
}

// TrajectoryPoint is one trial of a run.
type TrajectoryPoint struct {
	Iteration int     `json:"iteration"`
	Operator  string  `json:"operator"`
	Status    string  `json:"status"`
	Scored    bool    `json:"scored"`
	Accepted  bool    `json:"accepted"`
	Proposed  float64 `json:"proposed_score"`
	Current   float64 `json:"current_score"`
	Best      float64 `json:"best_score"`
}
