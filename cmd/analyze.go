package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/pipeline"
	"lkml/mergetrace/internal/report"
)

var (
	analyzeJSON     bool
	analyzeEvidence int
	analyzeValidate bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score patch families for merge evidence and label them by tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runPipeline(cmd, func(o *pipeline.Options) {
			o.SkipPulls = true
		})
		if err != nil {
			return err
		}

		if analyzeJSON {
			out := struct {
				RunID    string `json:"run_id"`
				Verdicts any    `json:"verdicts"`
				Checks   any    `json:"checks,omitempty"`
			}{RunID: res.RunID, Verdicts: res.Verdicts}
			if analyzeValidate {
				out.Checks = res.Checks
			}
			return writeJSON(os.Stdout, out)
		}

		if err := report.Merge(os.Stdout, res.Verdicts, res.Tiers, report.Options{MaxEvidence: analyzeEvidence}); err != nil {
			return err
		}
		if analyzeValidate {
			return report.Validation(os.Stdout, res.Checks, res.Confusion)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().IntVar(&analyzeEvidence, "evidence", report.DefaultOptions().MaxEvidence, "Evidence snippets shown per family")
	analyzeCmd.Flags().BoolVar(&analyzeValidate, "validate", false, "Compare verdicts against the commit log")
	addRunFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
