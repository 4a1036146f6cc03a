// Package config provides configuration loading, defaults, and validation for
// the confsearch engine.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the root configuration object.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Perturb PerturbConfig `mapstructure:"perturb"`
	Refine  RefineConfig  `mapstructure:"refine"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SearchConfig drives the Metropolis scheduler.
type SearchConfig struct {
	Operator         string  `mapstructure:"operator"`
	ScoreFunction    string  `mapstructure:"score_function"`
	Temperature      float64 `mapstructure:"temperature"`
	IterationBudget  int     `mapstructure:"iteration_budget"`
	IncreaseCycles   float64 `mapstructure:"increase_cycles"`
	RecoverLow       bool    `mapstructure:"recover_low"`
	SnapshotInterval int     `mapstructure:"snapshot_interval"`
	SnapshotPrefix   string  `mapstructure:"snapshot_prefix"`
	Seed             int64   `mapstructure:"seed"`
	ArtifactsDir     string  `mapstructure:"artifacts_dir"`
}

// PerturbConfig holds backbone move settings.
type PerturbConfig struct {
	MaxDeltaTorsion float64 `mapstructure:"max_delta_torsion"`
	LocalityRadius  int     `mapstructure:"locality_radius"`
	Level           int     `mapstructure:"level"`
	RamaBiased      bool    `mapstructure:"rama_biased"`
	PivotVariance   float64 `mapstructure:"pivot_variance"`
}

// RefineConfig toggles the repacker and minimizer run after each move.
type RefineConfig struct {
	Repack       bool    `mapstructure:"repack"`
	Minimize     bool    `mapstructure:"minimize"`
	MinTolerance float64 `mapstructure:"min_tolerance"`
	MinMaxIter   int     `mapstructure:"min_max_iter"`
	Explosion    int     `mapstructure:"explosion"`
}

// BridgeConfig describes a loop closure request.
type BridgeConfig struct {
	Motif       string `mapstructure:"motif"`
	Chain1End   int    `mapstructure:"chain1_end"`
	Chain2Begin int    `mapstructure:"chain2_begin"`
	Overlap     int    `mapstructure:"overlap"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Kind       string `mapstructure:"kind"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LogConfig mirrors logging.LogConfig.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks ranges of every recognized option.
func (c *Config) Validate() error {
	if c == nil {
		return invalid("config is nil")
	}
	if c.Search.Temperature <= 0 {
		return invalid("search.temperature must be > 0, got %g", c.Search.Temperature)
	}
	if c.Search.IterationBudget < 0 {
		return invalid("search.iteration_budget must be >= 0, got %d", c.Search.IterationBudget)
	}
	if c.Search.IterationBudget == 0 && c.Search.IncreaseCycles <= 0 {
		return invalid("search.iteration_budget or search.increase_cycles must be set")
	}
	if c.Search.SnapshotInterval < 0 {
		return invalid("search.snapshot_interval must be >= 0, got %d", c.Search.SnapshotInterval)
	}
	switch c.Search.Operator {
	case "single_torsion", "single", "small", "hierarchical", "local", "backbone_torsion", "pivot", "pivot_coupled":
	default:
		return invalid("search.operator %q is not supported", c.Search.Operator)
	}
	if c.Perturb.MaxDeltaTorsion <= 0 || c.Perturb.MaxDeltaTorsion > 180 {
		return invalid("perturb.max_delta_torsion must be in (0, 180], got %g", c.Perturb.MaxDeltaTorsion)
	}
	if c.Perturb.LocalityRadius < 0 {
		return invalid("perturb.locality_radius must be >= 0, got %d", c.Perturb.LocalityRadius)
	}
	if c.Perturb.Level < 0 {
		return invalid("perturb.level must be >= 0, got %d", c.Perturb.Level)
	}
	if c.Refine.Explosion < 0 || c.Refine.Explosion > 4 {
		return invalid("refine.explosion must be in [0, 4], got %d", c.Refine.Explosion)
	}
	if c.Refine.MinTolerance <= 0 {
		return invalid("refine.min_tolerance must be > 0")
	}
	if c.Refine.MinMaxIter <= 0 {
		return invalid("refine.min_max_iter must be > 0")
	}
	if c.Bridge.Overlap < 0 {
		return invalid("bridge.overlap must be >= 0, got %d", c.Bridge.Overlap)
	}
	if c.Bridge.MaxAttempts <= 0 {
		return invalid("bridge.max_attempts must be > 0")
	}
	switch strings.ToLower(c.Store.Kind) {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return invalid("store.sqlite_path is required for the sqlite store")
		}
	default:
		return invalid("store.kind %q is not supported", c.Store.Kind)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
