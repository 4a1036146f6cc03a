package config

import "github.com/spf13/viper"

const (
	DefaultOperator         = "hierarchical"
	DefaultScoreFunction    = "default"
	DefaultTemperature      = 1.0
	DefaultIterationBudget  = 1000
	DefaultSnapshotPrefix   = "traj"
	DefaultSeed             = 1
	DefaultArtifactsDir     = "runs"
	DefaultMaxDeltaTorsion  = 30.0
	DefaultLocalityRadius   = 2
	DefaultPivotVariance    = 8.0
	DefaultMinTolerance     = 0.01
	DefaultMinMaxIter       = 20
	DefaultOverlap          = 3
	DefaultMaxAttempts      = 10
	DefaultStoreKind        = "memory"
	DefaultSQLitePath       = "confsearch.db"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultMetricsNamespace = "confsearch"
)

// registerDefaults seeds v so that every key is known to viper. Env overrides
// only reach Unmarshal for keys viper has seen.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("search.operator", DefaultOperator)
	v.SetDefault("search.score_function", DefaultScoreFunction)
	v.SetDefault("search.temperature", DefaultTemperature)
	v.SetDefault("search.iteration_budget", DefaultIterationBudget)
	v.SetDefault("search.increase_cycles", 0.0)
	v.SetDefault("search.recover_low", true)
	v.SetDefault("search.snapshot_interval", 0)
	v.SetDefault("search.snapshot_prefix", DefaultSnapshotPrefix)
	v.SetDefault("search.seed", DefaultSeed)
	v.SetDefault("search.artifacts_dir", DefaultArtifactsDir)

	v.SetDefault("perturb.max_delta_torsion", DefaultMaxDeltaTorsion)
	v.SetDefault("perturb.locality_radius", DefaultLocalityRadius)
	v.SetDefault("perturb.level", 0)
	v.SetDefault("perturb.rama_biased", false)
	v.SetDefault("perturb.pivot_variance", DefaultPivotVariance)

	v.SetDefault("refine.repack", false)
	v.SetDefault("refine.minimize", false)
	v.SetDefault("refine.min_tolerance", DefaultMinTolerance)
	v.SetDefault("refine.min_max_iter", DefaultMinMaxIter)
	v.SetDefault("refine.explosion", 0)

	v.SetDefault("bridge.motif", "")
	v.SetDefault("bridge.chain1_end", 0)
	v.SetDefault("bridge.chain2_begin", 0)
	v.SetDefault("bridge.overlap", DefaultOverlap)
	v.SetDefault("bridge.max_attempts", DefaultMaxAttempts)

	v.SetDefault("store.kind", DefaultStoreKind)
	v.SetDefault("store.sqlite_path", DefaultSQLitePath)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
}

// ApplyDefaults fills zero-value fields of a programmatically built Config.
// Booleans are left alone: false is a meaningful setting.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Search.Operator == "" {
		cfg.Search.Operator = DefaultOperator
	}
	if cfg.Search.ScoreFunction == "" {
		cfg.Search.ScoreFunction = DefaultScoreFunction
	}
	if cfg.Search.Temperature == 0 {
		cfg.Search.Temperature = DefaultTemperature
	}
	if cfg.Search.IterationBudget == 0 && cfg.Search.IncreaseCycles == 0 {
		cfg.Search.IterationBudget = DefaultIterationBudget
	}
	if cfg.Search.SnapshotPrefix == "" {
		cfg.Search.SnapshotPrefix = DefaultSnapshotPrefix
	}
	if cfg.Search.ArtifactsDir == "" {
		cfg.Search.ArtifactsDir = DefaultArtifactsDir
	}

	if cfg.Perturb.MaxDeltaTorsion == 0 {
		cfg.Perturb.MaxDeltaTorsion = DefaultMaxDeltaTorsion
	}
	if cfg.Perturb.PivotVariance == 0 {
		cfg.Perturb.PivotVariance = DefaultPivotVariance
	}

	if cfg.Refine.MinTolerance == 0 {
		cfg.Refine.MinTolerance = DefaultMinTolerance
	}
	if cfg.Refine.MinMaxIter == 0 {
		cfg.Refine.MinMaxIter = DefaultMinMaxIter
	}

	if cfg.Bridge.MaxAttempts == 0 {
		cfg.Bridge.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Store.Kind == "" {
		cfg.Store.Kind = DefaultStoreKind
	}
	if cfg.Store.Kind == "sqlite" && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Default returns a fully defaulted Config.
func Default() *Config {
	cfg := &Config{
		Search: SearchConfig{RecoverLow: true},
		Perturb: PerturbConfig{
			LocalityRadius: DefaultLocalityRadius,
		},
		Bridge: BridgeConfig{Overlap: DefaultOverlap},
	}
	ApplyDefaults(cfg)
	return cfg
}
