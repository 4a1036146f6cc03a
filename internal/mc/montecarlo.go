// Package mc implements the Metropolis acceptance engine.
package mc

import (
	"math"
	"sort"

	"confsearch/internal/logging"
	"confsearch/internal/pose"
	"confsearch/internal/random"
)

// Stats is a snapshot of the acceptance counters.
type Stats struct {
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Temperature float64 `json:"temperature"`
	BestScore   float64 `json:"best_score"`
	LastScore   float64 `json:"last_accepted_score"`
}

// AcceptRate returns accepted / (accepted + rejected), or 0 before any trial.
func (s Stats) AcceptRate() float64 {
	total := s.Accepted + s.Rejected
	if total == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(total)
}

// MoveCounter tracks acceptance per move type.
type MoveCounter struct {
	Move     string  `json:"move"`
	Trials   int     `json:"trials"`
	Accepted int     `json:"accepted"`
	SumDelta float64 `json:"sum_delta"`
}

// MonteCarlo owns the acceptance counters and the best-so-far pose. The best
// pose is always an independent clone, never the caller's live pose.
//
// A temperature <= 0 is degenerate: improving or equal moves are still
// accepted, every worsening move is rejected and no random value is drawn.
type MonteCarlo struct {
	temperature float64
	rng         random.Source
	log         logging.Logger

	accepted  int
	rejected  int
	best      *pose.Pose
	bestScore float64
	lastScore float64
	moves     map[string]*MoveCounter
}

func New(temperature float64, rng random.Source) *MonteCarlo {
	return &MonteCarlo{
		temperature: temperature,
		rng:         rng,
		log:         logging.NewNopLogger(),
		bestScore:   math.Inf(1),
		lastScore:   math.Inf(1),
		moves:       make(map[string]*MoveCounter),
	}
}

// SetLogger attaches a logger; nil restores the no-op logger.
func (m *MonteCarlo) SetLogger(l logging.Logger) { m.log = logging.OrNop(l) }

func (m *MonteCarlo) Temperature() float64 { return m.temperature }

// Reset seeds the engine with a starting pose and clears the counters.
func (m *MonteCarlo) Reset(start *pose.Pose, score float64) {
	m.accepted, m.rejected = 0, 0
	m.moves = make(map[string]*MoveCounter)
	m.best = start.Clone()
	m.bestScore = score
	m.lastScore = score
}

// AcceptProbability is the Metropolis probability of moving from oldScore to
// newScore at the current temperature.
func (m *MonteCarlo) AcceptProbability(oldScore, newScore float64) float64 {
	if newScore <= oldScore {
		return 1
	}
	if m.temperature <= 0 {
		return 0
	}
	return math.Exp(-(newScore - oldScore) / m.temperature)
}

// Evaluate applies the Metropolis criterion. On acceptance the candidate
// becomes the best pose when it beats the best score. On rejection the
// caller restores its pre-trial pose.
func (m *MonteCarlo) Evaluate(oldScore, newScore float64, candidate *pose.Pose) bool {
	return m.EvaluateMove("", oldScore, newScore, candidate)
}

// EvaluateMove is Evaluate with per-move-type bookkeeping.
func (m *MonteCarlo) EvaluateMove(move string, oldScore, newScore float64, candidate *pose.Pose) bool {
	accept := m.decide(oldScore, newScore)

	if move != "" {
		c, ok := m.moves[move]
		if !ok {
			c = &MoveCounter{Move: move}
			m.moves[move] = c
		}
		c.Trials++
		if accept {
			c.Accepted++
			c.SumDelta += newScore - oldScore
		}
	}

	if !accept {
		m.rejected++
		return false
	}
	m.accepted++
	m.lastScore = newScore
	if newScore < m.bestScore {
		m.bestScore = newScore
		m.best = candidate.Clone()
	}
	return true
}

func (m *MonteCarlo) decide(oldScore, newScore float64) bool {
	if newScore <= oldScore {
		return true
	}
	if m.temperature <= 0 {
		return false
	}
	p := math.Exp(-(newScore - oldScore) / m.temperature)
	return m.rng.Uniform() < p
}

// RecoverLow overwrites p with the best pose seen. It reports false and
// leaves p untouched when nothing has been recorded yet.
func (m *MonteCarlo) RecoverLow(p *pose.Pose) bool {
	if m.best == nil || p == nil {
		return false
	}
	p.Assign(m.best)
	return true
}

// Best returns a clone of the best pose, or nil.
func (m *MonteCarlo) Best() *pose.Pose {
	if m.best == nil {
		return nil
	}
	return m.best.Clone()
}

func (m *MonteCarlo) BestScore() float64 { return m.bestScore }

func (m *MonteCarlo) Stats() Stats {
	return Stats{
		Accepted:    m.accepted,
		Rejected:    m.rejected,
		Temperature: m.temperature,
		BestScore:   m.bestScore,
		LastScore:   m.lastScore,
	}
}

// MoveCounters returns the per-move counters sorted by move name.
func (m *MonteCarlo) MoveCounters() []MoveCounter {
	out := make([]MoveCounter, 0, len(m.moves))
	for _, c := range m.moves {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Move < out[j].Move })
	return out
}

// ShowCounters logs the acceptance summary.
func (m *MonteCarlo) ShowCounters() {
	s := m.Stats()
	m.log.Info("monte carlo counters",
		logging.Int("accepted", s.Accepted),
		logging.Int("rejected", s.Rejected),
		logging.Float64("accept_rate", s.AcceptRate()),
		logging.Float64("best_score", s.BestScore),
		logging.Float64("last_accepted_score", s.LastScore),
	)
	for _, c := range m.MoveCounters() {
		avg := 0.0
		if c.Accepted > 0 {
			avg = c.SumDelta / float64(c.Accepted)
		}
		m.log.Info("move counters",
			logging.String("move", c.Move),
			logging.Int("trials", c.Trials),
			logging.Int("accepted", c.Accepted),
			logging.Float64("avg_accepted_delta", avg),
		)
	}
}
