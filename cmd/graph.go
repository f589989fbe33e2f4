package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/pipeline"
	"lkml/mergetrace/internal/report"
)

var graphJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Analyze discussion graph structure: components, hubs, dormant families",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runPipeline(cmd, func(o *pipeline.Options) {
			o.SkipPulls = true
			o.Analyzer = analyzerConfig()
		})
		if err != nil {
			return err
		}

		if graphJSON {
			return writeJSON(os.Stdout, res.Batches)
		}
		for _, b := range res.Batches {
			if err := report.Graph(os.Stdout, b.Index, b.Analysis); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Output as JSON")
	addAnalyzerFlags(graphCmd)
	addRunFlags(graphCmd)
	rootCmd.AddCommand(graphCmd)
}
