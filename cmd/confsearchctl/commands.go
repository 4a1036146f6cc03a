package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"confsearch/internal/stats"
	"confsearch/pkg/confsearch"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	var (
		in         poseFlags
		nativePath string
		req        confsearch.RunRequest
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Metropolis search from a starting pose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.checkOutput(); err != nil {
				return err
			}
			start, err := in.load()
			if err != nil {
				return err
			}
			req.Start = start
			if nativePath != "" {
				if req.Native, err = readPose(nativePath); err != nil {
					return err
				}
			}
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				summary, runErr := c.Run(ctx, req)
				if summary.RunID == "" {
					return runErr
				}
				if err := writePose(in.out, summary.Final); err != nil {
					return err
				}
				if err := printRun(cmd, root.output, summary); err != nil {
					return err
				}
				return runErr
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.path, "pose", "", "starting pose JSON file")
	f.StringVar(&in.sequence, "sequence", "", "build an extended starting chain from one-letter codes")
	f.StringVar(&in.out, "out", "", "write the final pose JSON here")
	f.StringVar(&nativePath, "native", "", "native pose JSON to compare the final pose against")
	f.StringVar(&req.RunID, "run-id", "", "run identifier (default: random UUID)")
	f.StringVar(&req.Operator, "operator", "", "perturbation operator (single_torsion, hierarchical, pivot_coupled)")
	f.IntVar(&req.Iterations, "iterations", 0, "iteration budget")
	f.Float64Var(&req.Temperature, "temperature", 0, "Metropolis temperature")
	f.Int64Var(&req.Seed, "seed", 0, "random seed")
	return cmd
}

func printRun(cmd *cobra.Command, format string, s confsearch.RunSummary) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return printJSON(w, s.RunSummary)
	}
	fmt.Fprintf(w, "run_id=%s state=%s stop=%s\n", s.RunID, s.State, s.StopReason)
	fmt.Fprintf(w, "iterations=%d accepted=%d rejected=%d retries=%d\n", s.Iterations, s.Accepted, s.Rejected, s.Retries)
	fmt.Fprintf(w, "initial=%.4f final=%.4f best=%.4f\n", s.InitialScore, s.FinalScore, s.BestScore)
	if s.NativeMetric != nil {
		fmt.Fprintf(w, "native_rmsd=%.4f\n", *s.NativeMetric)
	}
	if len(s.Snapshots) > 0 {
		fmt.Fprintf(w, "snapshots=%d\n", len(s.Snapshots))
	}
	if s.ArtifactsDir != "" {
		fmt.Fprintf(w, "artifacts=%s\n", s.ArtifactsDir)
	}
	return nil
}

func newBridgeCommand(root *rootOptions) *cobra.Command {
	var (
		in  poseFlags
		req = confsearch.BridgeRequest{Overlap: -1}
	)
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Rebuild a loop between two residues and verify its secondary structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.checkOutput(); err != nil {
				return err
			}
			start, err := in.load()
			if err != nil {
				return err
			}
			req.Start = start
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				out, runErr := c.Bridge(ctx, req)
				if out.RunID == "" {
					return runErr
				}
				if out.Status == "success" {
					if err := writePose(in.out, out.Final); err != nil {
						return err
					}
				}
				w := cmd.OutOrStdout()
				if root.output == "json" {
					if err := printJSON(w, out); err != nil {
						return err
					}
					return runErr
				}
				fmt.Fprintf(w, "run_id=%s status=%s attempts=%d\n", out.RunID, out.Status, out.Attempts)
				fmt.Fprintf(w, "target ss=%s aa=%s abego=%s span=%d-%d\n", out.Target.SS, out.Target.AA, out.Target.ABEGO, out.Target.Left, out.Target.Right)
				fmt.Fprintf(w, "initial=%.4f final=%.4f\n", out.InitialScore, out.FinalScore)
				return runErr
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.path, "pose", "", "input pose JSON file")
	f.StringVar(&in.sequence, "sequence", "", "build an extended input chain from one-letter codes")
	f.StringVar(&in.out, "out", "", "write the closed pose JSON here")
	f.StringVar(&req.RunID, "run-id", "", "run identifier (default: random UUID)")
	f.StringVar(&req.Motif, "motif", "", `loop motif such as "2EB-3LG"`)
	f.IntVar(&req.Chain1End, "chain1-end", 0, "last residue before the loop")
	f.IntVar(&req.Chain2Begin, "chain2-begin", 0, "first residue after the loop")
	f.IntVar(&req.Overlap, "overlap", -1, "residues rebuilt on each side of the junction (default: config)")
	f.IntVar(&req.MaxAttempts, "attempts", 0, "maximum closure attempts")
	f.Int64Var(&req.Seed, "seed", 0, "random seed")
	return cmd
}

func newRotamersCommand(root *rootOptions) *cobra.Command {
	var (
		in       poseFlags
		req      confsearch.RotamerRequest
		maxScore float64
	)
	cmd := &cobra.Command{
		Use:   "rotamers",
		Short: "Step through the rotamers of one residue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.checkOutput(); err != nil {
				return err
			}
			start, err := in.load()
			if err != nil {
				return err
			}
			req.Start = start
			if cmd.Flags().Changed("max-score") {
				req.MaxScore = &maxScore
			}
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				steps, final, err := c.Rotamers(ctx, req)
				if err != nil {
					return err
				}
				if err := writePose(in.out, final); err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if root.output == "json" {
					return printJSON(w, steps)
				}
				tw := newTable(w)
				fmt.Fprintln(tw, "STEP\tSTATUS\tSCORE\tCHI")
				for _, s := range steps {
					fmt.Fprintf(tw, "%d\t%s\t%.4f\t%v\n", s.Step, s.Status, s.Score, s.Chi)
				}
				return tw.Flush()
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.path, "pose", "", "input pose JSON file")
	f.StringVar(&in.sequence, "sequence", "", "build an extended input chain from one-letter codes")
	f.StringVar(&in.out, "out", "", "write the resulting pose JSON here")
	f.IntVar(&req.Residue, "residue", 1, "residue index (1-based)")
	f.IntVar(&req.Explosion, "explosion", 0, "extra sampling around staggered chi values (0-4)")
	f.BoolVar(&req.IncludeCurrent, "include-current", false, "try the current side-chain conformation first")
	f.Float64Var(&maxScore, "max-score", 0, "reject rotamers that score above this value")
	f.IntVar(&req.MaxSteps, "max-steps", 0, "stop after this many applications (0: until exhausted)")
	return cmd
}

func newRunsCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.checkOutput(); err != nil {
				return err
			}
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				runs, err := c.Runs(ctx, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if root.output == "json" {
					return printJSON(w, runs)
				}
				tw := newTable(w)
				fmt.Fprintln(tw, "RUN_ID\tKIND\tSTATE\tOPERATOR\tITER\tBEST\tSTARTED")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.4f\t%s\n",
						r.RunID, r.Kind, r.State, r.Operator, r.Iterations, r.BestScore, r.StartedAt.Format("2006-01-02T15:04:05Z"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func newShowCommand(root *rootOptions) *cobra.Command {
	var trajectory bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a persisted run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.checkOutput(); err != nil {
				return err
			}
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				detail, err := c.Show(ctx, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if root.output == "json" {
					if !trajectory {
						detail.Trajectory = nil
					}
					return printJSON(w, detail)
				}
				s := detail.Summary
				fmt.Fprintf(w, "run_id=%s kind=%s state=%s stop=%s\n", s.RunID, s.Kind, s.State, s.StopReason)
				fmt.Fprintf(w, "operator=%s seed=%d temperature=%g budget=%d\n", s.Operator, s.Seed, s.Temperature, s.Budget)
				fmt.Fprintf(w, "iterations=%d accepted=%d rejected=%d retries=%d\n", s.Iterations, s.Accepted, s.Rejected, s.Retries)
				fmt.Fprintf(w, "initial=%.4f final=%.4f best=%.4f\n", s.InitialScore, s.FinalScore, s.BestScore)
				if s.Error != "" {
					fmt.Fprintf(w, "error=%s\n", s.Error)
				}
				fmt.Fprintf(w, "snapshots=%d written=%d failed=%d\n", len(detail.Snapshots), s.SnapshotsWritten, s.SnapshotFailures)
				if len(detail.Trajectory) > 0 {
					ts := stats.Summarize(detail.Trajectory)
					fmt.Fprintf(w, "accept_rate=%.3f mean_current=%.4f std_current=%.4f\n", ts.AcceptRate, ts.MeanCurrent, ts.StdCurrent)
				}
				if !trajectory {
					return nil
				}
				tw := newTable(w)
				fmt.Fprintln(tw, "ITER\tOPERATOR\tSTATUS\tACCEPTED\tPROPOSED\tCURRENT\tBEST")
				for _, p := range detail.Trajectory {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%.4f\t%.4f\t%.4f\n",
						p.Iteration, p.Operator, p.Status, p.Accepted, p.Proposed, p.Current, p.Best)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&trajectory, "trajectory", false, "include the per-trial trajectory")
	return cmd
}

func newExportCommand(root *rootOptions) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Copy the artifacts of a run to another directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return errors.New("--out is required")
			}
			return root.withClient(cmd, func(ctx context.Context, c *confsearch.Client) error {
				dir, err := c.Export(ctx, args[0], outDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported=%s\n", dir)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "destination directory")
	return cmd
}
