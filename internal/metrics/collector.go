// Package metrics exposes search progress as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"confsearch/internal/logging"
	"confsearch/internal/search"
)

// Config holds collector settings.
type Config struct {
	Namespace       string
	Subsystem       string
	EnableGoMetrics bool
	DurationBuckets []float64
	ConstLabels     map[string]string
}

// Collector implements search.Observer and remodel.Recorder.
type Collector struct {
	registry *prometheus.Registry
	log      logging.Logger

	trials      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	closures    *prometheus.CounterVec
	current     prometheus.Gauge
	best        prometheus.Gauge
	temperature prometheus.Gauge
	acceptRate  prometheus.Gauge
	duration    *prometheus.HistogramVec
}

// NewCollector registers the search metrics on a private registry.
func NewCollector(cfg Config, log logging.Logger) (*Collector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("metrics: namespace is required")
	}
	if cfg.DurationBuckets == nil {
		cfg.DurationBuckets = prometheus.ExponentialBuckets(1e-5, 4, 10)
	}

	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		log:      logging.OrNop(log),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"trials_total", "Trials by operator and outcome.")), []string{"operator", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"runs_total", "Finished runs by terminal state.")), []string{"state"}),
		closures: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"closures_total", "Loop closure attempts by status.")), []string{"status"}),
		current: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"current_score", "Score of the current pose."))),
		best: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"best_score", "Lowest score seen in the current run."))),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"temperature", "Metropolis temperature of the last run."))),
		acceptRate: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"accept_rate", "Accepted over scored trials of the last run."))),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "trial_duration_seconds",
			Help:        "Wall time of one trial.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.DurationBuckets,
		}, []string{"operator"}),
	}

	collectors := []prometheus.Collector{
		c.trials, c.runs, c.closures, c.current, c.best,
		c.temperature, c.acceptRate, c.duration,
	}
	if cfg.EnableGoMetrics {
		collectors = append(collectors, prometheus.NewGoCollector())
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for callers that gather programmatically.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func outcome(t search.Trial) string {
	switch {
	case !t.Scored:
		return "retry"
	case t.Accepted:
		return "accepted"
	default:
		return "rejected"
	}
}

func (c *Collector) ObserveTrial(t search.Trial) {
	c.trials.WithLabelValues(t.Operator, outcome(t)).Inc()
	c.duration.WithLabelValues(t.Operator).Observe(t.Duration.Seconds())
	c.current.Set(t.Current)
	c.best.Set(t.Best)
}

func (c *Collector) ObserveRun(r search.Result) {
	c.runs.WithLabelValues(r.State).Inc()
	c.temperature.Set(r.Temperature)
	if scored := r.Accepted + r.Rejected; scored > 0 {
		c.acceptRate.Set(float64(r.Accepted) / float64(scored))
	}
	c.log.Debug("run metrics recorded",
		logging.String("run_id", r.RunID),
		logging.String("state", r.State),
	)
}

func (c *Collector) ObserveClosure(status string) {
	c.closures.WithLabelValues(status).Inc()
}
