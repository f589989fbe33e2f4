package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/pipeline"
	"lkml/mergetrace/internal/report"
)

var (
	pullsJSON      bool
	pullsUnmatched bool
)

var pullsCmd = &cobra.Command{
	Use:   "pulls",
	Short: "Match [GIT PULL] announcements to commits in the commit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runPipeline(cmd, func(o *pipeline.Options) {
			o.SkipMerge = true
		})
		if err != nil {
			return err
		}

		if pullsJSON {
			out := struct {
				RunID     string `json:"run_id"`
				Summary   any    `json:"summary"`
				Matches   any    `json:"matches"`
				Unmatched any    `json:"unmatched_commits,omitempty"`
			}{RunID: res.RunID, Summary: res.MatchSummary, Matches: res.Matches}
			if pullsUnmatched {
				out.Unmatched = res.Unmatched
			}
			return writeJSON(os.Stdout, out)
		}

		if err := report.Pulls(os.Stdout, res.Matches, res.MatchSummary); err != nil {
			return err
		}
		if pullsUnmatched {
			return report.Unmatched(os.Stdout, res.Unmatched)
		}
		return nil
	},
}

func init() {
	pullsCmd.Flags().BoolVar(&pullsJSON, "json", false, "Output as JSON")
	pullsCmd.Flags().BoolVar(&pullsUnmatched, "unmatched", true, "Also list commits no pull reference matched")
	addRunFlags(pullsCmd)
	rootCmd.AddCommand(pullsCmd)
}
