// Package search runs the Metropolis cycle: perturb, refine, score and
// accept or revert, one trial at a time.
package search

import (
	"errors"
	"fmt"
)

// State is the lifecycle stage of a scheduler.
type State int

const (
	StateInit State = iota
	StateRunning
	// StateTerminated is reached when the iteration budget is spent or the
	// operator can produce no further proposals.
	StateTerminated
	// StateFatal is reached on configuration errors found before the first
	// trial.
	StateFatal
	// StateAborted is reached when a collaborator fails mid-run or the
	// context is cancelled between trials.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateFatal:
		return "fatal"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNoScoreFunction = errors.New("score function is required")
	ErrNoOperator      = errors.New("perturbation operator is required")
	ErrNoPose          = errors.New("starting pose is required")
	ErrNoBudget        = errors.New("iteration budget must be > 0")
	ErrAlreadyRan      = errors.New("scheduler already ran")
)

// FatalError reports the configuration problem that stopped a run before
// it started.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string { return fmt.Sprintf("search %s: %v", e.Stage, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// StepError wraps a collaborator failure with the trial it happened in.
type StepError struct {
	Iteration int
	Step      string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("search iteration %d %s: %v", e.Iteration, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
