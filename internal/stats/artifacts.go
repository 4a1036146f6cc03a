package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"confsearch/internal/model"
)

const (
	runIndexFile      = "run_index.json"
	configFile        = "config.json"
	summaryFile       = "summary.json"
	trajectoryFile    = "trajectory.csv"
	movesFile         = "moves.json"
	trajectoryColumns = 8
)

// RunConfig records the settings a run was started with.
type RunConfig struct {
	RunID            string  `json:"run_id"`
	Kind             string  `json:"kind"`
	Sequence         string  `json:"sequence"`
	Operator         string  `json:"operator"`
	ScoreFunction    string  `json:"score_function"`
	Temperature      float64 `json:"temperature"`
	IterationBudget  int     `json:"iteration_budget"`
	IncreaseCycles   float64 `json:"increase_cycles,omitempty"`
	RecoverLow       bool    `json:"recover_low"`
	SnapshotInterval int     `json:"snapshot_interval"`
	SnapshotPrefix   string  `json:"snapshot_prefix,omitempty"`
	Seed             int64   `json:"seed"`
	MaxDelta         float64 `json:"max_delta_torsion"`
	LocalityRadius   int     `json:"locality_radius"`
	RamaBiased       bool    `json:"rama_biased"`
	Repack           bool    `json:"repack"`
	Minimize         bool    `json:"minimize"`
	Motif            string  `json:"motif,omitempty"`
	Overlap          int     `json:"overlap,omitempty"`
}

// MoveStat is the acceptance record of one move type.
type MoveStat struct {
	Move     string  `json:"move"`
	Trials   int     `json:"trials"`
	Accepted int     `json:"accepted"`
	SumDelta float64 `json:"sum_delta"`
}

type RunArtifacts struct {
	Config     RunConfig               `json:"config"`
	Summary    model.RunSummary        `json:"summary"`
	Trajectory []model.TrajectoryPoint `json:"trajectory"`
	Moves      []MoveStat              `json:"moves,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Kind         string  `json:"kind"`
	Operator     string  `json:"operator"`
	State        string  `json:"state"`
	Seed         int64   `json:"seed"`
	Iterations   int     `json:"iterations"`
	AcceptRate   float64 `json:"accept_rate"`
	BestScore    float64 `json:"best_score"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := WriteRunConfig(baseDir, artifacts.Config.RunID, artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, movesFile), artifacts.Moves); err != nil {
		return "", err
	}
	if err := WriteTrajectory(runDir, artifacts.Trajectory); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, trajectoryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	movesPath := filepath.Join(src, movesFile)
	if _, err := os.Stat(movesPath); err == nil {
		if err := copyFile(movesPath, filepath.Join(dst, movesFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (model.RunSummary, bool, error) {
	var summary model.RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func WriteTrajectory(runDir string, points []model.TrajectoryPoint) error {
	path := filepath.Join(runDir, trajectoryFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"iteration", "operator", "status", "scored", "accepted", "proposed_score", "current_score", "best_score"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			strconv.Itoa(p.Iteration),
			p.Operator,
			p.Status,
			strconv.FormatBool(p.Scored),
			strconv.FormatBool(p.Accepted),
			strconv.FormatFloat(p.Proposed, 'f', -1, 64),
			strconv.FormatFloat(p.Current, 'f', -1, 64),
			strconv.FormatFloat(p.Best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrajectory(baseDir, runID string) ([]model.TrajectoryPoint, bool, error) {
	path := filepath.Join(baseDir, runID, trajectoryFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TrajectoryPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < trajectoryColumns {
		return nil, false, fmt.Errorf("trajectory header must have %d columns", trajectoryColumns)
	}

	points := make([]model.TrajectoryPoint, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		point, err := parseTrajectoryRow(record)
		if err != nil {
			return nil, false, err
		}
		points = append(points, point)
	}
	return points, true, nil
}

func parseTrajectoryRow(record []string) (model.TrajectoryPoint, error) {
	if len(record) < trajectoryColumns {
		return model.TrajectoryPoint{}, fmt.Errorf("trajectory row must have %d columns", trajectoryColumns)
	}
	var (
		p   model.TrajectoryPoint
		err error
	)
	if p.Iteration, err = strconv.Atoi(record[0]); err != nil {
		return p, err
	}
	p.Operator, p.Status = record[1], record[2]
	if p.Scored, err = strconv.ParseBool(record[3]); err != nil {
		return p, err
	}
	if p.Accepted, err = strconv.ParseBool(record[4]); err != nil {
		return p, err
	}
	if p.Proposed, err = strconv.ParseFloat(record[5], 64); err != nil {
		return p, err
	}
	if p.Current, err = strconv.ParseFloat(record[6], 64); err != nil {
		return p, err
	}
	if p.Best, err = strconv.ParseFloat(record[7], 64); err != nil {
		return p, err
	}
	return p, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
