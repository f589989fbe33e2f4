package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/config"
	"lkml/mergetrace/internal/evidence"
	"lkml/mergetrace/internal/graph"
	"lkml/mergetrace/internal/match"
	"lkml/mergetrace/internal/pipeline"
)

// Shared by every command that runs the pipeline. Values only apply when the
// flag was set on the command line; otherwise the config value wins.
var (
	flagSample          int
	flagBatchSize       int
	flagPullLimit       int
	flagCommitLimit     int
	flagCatalog         string
	flagMaintainersFile string
	flagWorkers         int
	flagStrategy        string
	flagThreshold       float64
)

func addRunFlags(c *cobra.Command) {
	f := c.Flags()
	f.IntVar(&flagSample, "sample", 5000, "Maximum patch messages to load (0 = all)")
	f.IntVar(&flagBatchSize, "batch-size", 0, "Messages per family-preserving batch (0 = one batch)")
	f.IntVar(&flagPullLimit, "pull-limit", 0, "Maximum pull messages to load (0 = all)")
	f.IntVar(&flagCommitLimit, "commit-limit", 0, "Maximum commits to load (0 = all)")
	f.StringVar(&flagCatalog, "catalog", "", "YAML evidence catalog replacing the built-in one")
	f.StringVar(&flagMaintainersFile, "maintainers-file", "", "MAINTAINERS file merged into the allow-list")
	f.IntVar(&flagWorkers, "workers", 4, "Parallel family scorers")
	f.StringVar(&flagStrategy, "strategy", match.StrategyTokenSet, "Subject similarity: token-set or levenshtein")
	f.Float64Var(&flagThreshold, "threshold", match.DefaultThreshold, "Minimum similarity for a fuzzy match")
}

func applyRunFlags(c *cobra.Command, conf *config.Config) error {
	f := c.Flags()
	if f.Changed("sample") {
		conf.Sample.Size = flagSample
	}
	if f.Changed("batch-size") {
		conf.Sample.BatchSize = flagBatchSize
	}
	if f.Changed("pull-limit") {
		conf.Sample.PullLimit = flagPullLimit
	}
	if f.Changed("commit-limit") {
		conf.Sample.CommitLimit = flagCommitLimit
	}
	if f.Changed("catalog") {
		conf.Scoring.Catalog = flagCatalog
	}
	if f.Changed("maintainers-file") {
		conf.Scoring.MaintainersFile = flagMaintainersFile
	}
	if f.Changed("workers") {
		conf.Scoring.Workers = flagWorkers
	}
	if f.Changed("strategy") {
		conf.Matching.Strategy = flagStrategy
	}
	if f.Changed("threshold") {
		conf.Matching.Threshold = flagThreshold
	}
	return conf.Validate()
}

// pipelineOptions turns the effective config into run options, loading any
// catalog or MAINTAINERS file it names.
func pipelineOptions(conf *config.Config) (pipeline.Options, error) {
	opts := pipeline.Options{
		SampleSize:  conf.Sample.Size,
		BatchSize:   conf.Sample.BatchSize,
		PullLimit:   conf.Sample.PullLimit,
		CommitLimit: conf.Sample.CommitLimit,
		Workers:     conf.Scoring.Workers,
		Threshold:   conf.Matching.Threshold,
		Logger:      logger,
	}
	if conf.Scoring.Catalog != "" {
		catalog, err := evidence.LoadCatalog(conf.Scoring.Catalog)
		if err != nil {
			return opts, err
		}
		opts.Catalog = catalog
	}
	if conf.Scoring.MaintainersFile != "" {
		entries, err := evidence.LoadMaintainersFile(conf.Scoring.MaintainersFile)
		if err != nil {
			return opts, err
		}
		opts.Maintainers = entries
	}
	sim, err := match.NewSimilarity(conf.Matching.Strategy)
	if err != nil {
		return opts, err
	}
	opts.Similarity = sim
	return opts, nil
}

// runPipeline opens the store and executes one run. tweak adjusts the options
// for the calling command.
func runPipeline(c *cobra.Command, tweak func(*pipeline.Options)) (*pipeline.Result, error) {
	if err := applyRunFlags(c, cfg); err != nil {
		return nil, err
	}
	opts, err := pipelineOptions(cfg)
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(&opts)
	}

	d, err := OpenDatabase()
	if err != nil {
		return nil, err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt)
	defer stop()
	return pipeline.Run(ctx, d, opts)
}

func commandContext(c *cobra.Command) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// Analyzer knobs used by the graph and run commands
var (
	analyzeTopN         int
	analyzeStaleDays    int64
	analyzeHubThreshold int
)

func addAnalyzerFlags(c *cobra.Command) {
	defaults := graph.DefaultConfig()
	c.Flags().IntVar(&analyzeTopN, "top-n", defaults.TopN, "Number of top items to show per section")
	c.Flags().Int64Var(&analyzeStaleDays, "stale-days", defaults.StaleDays, "Days without activity to consider a family dormant")
	c.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", defaults.HubThreshold, "Minimum degree to consider a message a hub")
}

func analyzerConfig() *graph.AnalyzerConfig {
	return &graph.AnalyzerConfig{
		HubThreshold: analyzeHubThreshold,
		TopN:         analyzeTopN,
		StaleDays:    analyzeStaleDays,
	}
}
