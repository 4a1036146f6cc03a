package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"confsearch/internal/config"
	"confsearch/internal/logging"
	"confsearch/internal/metrics"
	"confsearch/pkg/confsearch"
)

var Version = "dev"

type rootOptions struct {
	configPath   string
	logLevel     string
	logFormat    string
	storeKind    string
	dbPath       string
	artifactsDir string
	output       string
	metricsAddr  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "confsearchctl",
		Short:         "Metropolis Monte Carlo conformational search",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (YAML); CONFSEARCH_* env vars override it")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&opts.storeKind, "store", "", "store backend (memory, sqlite)")
	pf.StringVar(&opts.dbPath, "db-path", "", "sqlite database path")
	pf.StringVar(&opts.artifactsDir, "artifacts-dir", "", `run artifacts directory ("-" disables)`)
	pf.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	cmd.AddCommand(
		newRunCommand(opts),
		newBridgeCommand(opts),
		newRotamersCommand(opts),
		newRunsCommand(opts),
		newShowCommand(opts),
		newExportCommand(opts),
	)
	return cmd
}

// loadConfig resolves file and env settings, then applies explicit flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.storeKind != "" {
		cfg.Store.Kind = o.storeKind
	}
	if o.dbPath != "" {
		cfg.Store.SQLitePath = o.dbPath
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withClient builds a client for one command and tears it down afterwards.
func (o *rootOptions) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *confsearch.Client) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewCollector(metrics.Config{Namespace: cfg.Metrics.Namespace}, log)
		if err != nil {
			return err
		}
	}

	client, err := confsearch.New(confsearch.Options{
		Config:       cfg,
		Logger:       log,
		Metrics:      collector,
		ArtifactsDir: o.artifactsDir,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.metricsAddr != "" && collector != nil {
		stop := serveMetrics(o.metricsAddr, collector, log)
		defer stop()
	}
	return fn(ctx, client)
}

func serveMetrics(addr string, collector *metrics.Collector, log logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", logging.Err(err))
		}
	}()
	log.Info("serving metrics", logging.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (o *rootOptions) checkOutput() error {
	switch o.output {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", o.output)
	}
}
