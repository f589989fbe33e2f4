package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lkml/mergetrace/internal/config"
	"lkml/mergetrace/internal/pipeline"
	"lkml/mergetrace/internal/report"
)

var (
	runJSON bool
	runOut  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis and write every enabled report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("out") {
			cfg.Reports.Dir = runOut
		}
		rc := cfg.Reports
		res, err := runPipeline(cmd, func(o *pipeline.Options) {
			o.SkipMerge = !rc.Merge && !rc.Validation && !rc.Graph
			o.SkipPulls = !rc.Pulls && !rc.Unmatched
			o.Analyzer = analyzerConfig()
		})
		if err != nil {
			return err
		}

		if runJSON && rc.Dir == "" {
			return writeJSON(os.Stdout, res)
		}
		return writeReports(rc, res)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output the whole result as JSON")
	runCmd.Flags().StringVar(&runOut, "out", "", "Directory for report files (default: stdout)")
	addAnalyzerFlags(runCmd)
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

type section struct {
	name    string
	enabled bool
	render  func(io.Writer) error
}

func sections(rc config.ReportsConfig, res *pipeline.Result) []section {
	return []section{
		{"merge", rc.Merge, func(w io.Writer) error {
			return report.Merge(w, res.Verdicts, res.Tiers, report.DefaultOptions())
		}},
		{"validation", rc.Validation, func(w io.Writer) error {
			return report.Validation(w, res.Checks, res.Confusion)
		}},
		{"pulls", rc.Pulls, func(w io.Writer) error {
			return report.Pulls(w, res.Matches, res.MatchSummary)
		}},
		{"unmatched", rc.Unmatched, func(w io.Writer) error {
			return report.Unmatched(w, res.Unmatched)
		}},
		{"graph", rc.Graph, func(w io.Writer) error {
			for _, b := range res.Batches {
				if err := report.Graph(w, b.Index, b.Analysis); err != nil {
					return err
				}
			}
			return nil
		}},
	}
}

// writeReports renders enabled sections to stdout, or to one file per
// section plus result.json when a directory is configured.
func writeReports(rc config.ReportsConfig, res *pipeline.Result) error {
	if rc.Dir == "" {
		for _, s := range sections(rc, res) {
			if !s.enabled {
				continue
			}
			if err := s.render(os.Stdout); err != nil {
				return err
			}
		}
		return nil
	}

	if err := os.MkdirAll(rc.Dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	for _, s := range sections(rc, res) {
		if !s.enabled {
			continue
		}
		path := filepath.Join(rc.Dir, s.name+".txt")
		if err := writeFile(path, s.render); err != nil {
			return err
		}
		logger.Info("report written", zap.String("report", s.name), zap.String("path", path))
	}
	path := filepath.Join(rc.Dir, "result.json")
	if err := writeFile(path, func(w io.Writer) error { return writeJSON(w, res) }); err != nil {
		return err
	}
	logger.Info("result written", zap.String("path", path), zap.String("run_id", res.RunID))
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
