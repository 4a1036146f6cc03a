package stats

import (
	"math"

	"confsearch/internal/model"
)

// TrajectoryStats condenses a trajectory.
type TrajectoryStats struct {
	Trials      int     `json:"trials"`
	Scored      int     `json:"scored"`
	Accepted    int     `json:"accepted"`
	Retries     int     `json:"retries"`
	AcceptRate  float64 `json:"accept_rate"`
	MeanCurrent float64 `json:"mean_current"`
	StdCurrent  float64 `json:"std_current"`
	MinCurrent  float64 `json:"min_current"`
	FinalBest   float64 `json:"final_best"`
}

// Summarize computes acceptance and score statistics. AcceptRate is taken
// over scored trials only.
func Summarize(points []model.TrajectoryPoint) TrajectoryStats {
	out := TrajectoryStats{Trials: len(points)}
	if len(points) == 0 {
		return out
	}
	out.MinCurrent = math.Inf(1)
	sum := 0.0
	for _, p := range points {
		if p.Scored {
			out.Scored++
		} else {
			out.Retries++
		}
		if p.Accepted {
			out.Accepted++
		}
		sum += p.Current
		out.MinCurrent = math.Min(out.MinCurrent, p.Current)
	}
	n := float64(len(points))
	out.MeanCurrent = sum / n
	varSum := 0.0
	for _, p := range points {
		d := p.Current - out.MeanCurrent
		varSum += d * d
	}
	out.StdCurrent = math.Sqrt(varSum / n)
	if out.Scored > 0 {
		out.AcceptRate = float64(out.Accepted) / float64(out.Scored)
	}
	out.FinalBest = points[len(points)-1].Best
	return out
}

// IndexEntry builds the run index line of a summary.
func IndexEntry(summary model.RunSummary, operator string) RunIndexEntry {
	rate := 0.0
	if total := summary.Accepted + summary.Rejected; total > 0 {
		rate = float64(summary.Accepted) / float64(total)
	}
	return RunIndexEntry{
		RunID:        summary.RunID,
		Kind:         summary.Kind,
		Operator:     operator,
		State:        summary.State,
		Seed:         summary.Seed,
		Iterations:   summary.Iterations,
		AcceptRate:   rate,
		BestScore:    summary.BestScore,
		CreatedAtUTC: summary.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
}
