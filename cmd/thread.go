package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lkml/mergetrace/internal/db"
	"lkml/mergetrace/internal/evidence"
	"lkml/mergetrace/internal/graph"
	"lkml/mergetrace/internal/pipeline"
	"lkml/mergetrace/internal/report"
)

var threadJSON bool

var threadCmd = &cobra.Command{
	Use:   "thread <thread-id>",
	Short: "Score the patch families of a single discussion thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		opts, err := pipelineOptions(cfg)
		if err != nil {
			return err
		}
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		verdicts, err := threadVerdicts(commandContext(cmd), d, args[0], opts)
		if err != nil {
			return err
		}
		if threadJSON {
			return writeJSON(os.Stdout, verdicts)
		}
		tiers := evidence.Default().Tiers
		if opts.Catalog != nil {
			tiers = opts.Catalog.Tiers
		}
		return report.Merge(os.Stdout, verdicts, tiers, report.DefaultOptions())
	},
}

func init() {
	threadCmd.Flags().BoolVar(&threadJSON, "json", false, "Output as JSON")
	addRunFlags(threadCmd)
	rootCmd.AddCommand(threadCmd)
}

// threadVerdicts scores every family found in one thread against the
// store's allow-list merged with opts.Maintainers.
func threadVerdicts(ctx context.Context, d *db.DB, threadID string, opts pipeline.Options) ([]evidence.Verdict, error) {
	msgs, err := d.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("thread not found: %s", threadID)
	}
	stored, err := d.Maintainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading maintainers: %w", err)
	}
	maintainers := evidence.NewMaintainers(stored)
	maintainers.Add(opts.Maintainers...)
	var set evidence.MaintainerSet
	if len(maintainers) > 0 {
		set = maintainers
	}

	g := graph.Build(msgs)
	scorer := evidence.NewScorer(opts.Catalog, set)
	families := g.Families()
	verdicts := make([]evidence.Verdict, 0, len(families))
	for _, f := range families {
		verdicts = append(verdicts, scorer.Score(f))
	}
	sort.SliceStable(verdicts, func(i, j int) bool { return verdicts[i].Score > verdicts[j].Score })
	logger.Debug("thread scored",
		zap.String("thread_id", threadID),
		zap.Int("messages", len(msgs)),
		zap.Int("families", len(verdicts)))
	return verdicts, nil
}
