package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/signature"
)

var signatureJSON bool

var signatureCmd = &cobra.Command{
	Use:   "signature <subject>",
	Short: "Show the patch signature parsed from a subject line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sig := signature.Extract(strings.Join(args, " "))
		if signatureJSON {
			return writeJSON(os.Stdout, sig)
		}

		fmt.Printf("  title:   %s\n", sig.Title)
		fmt.Printf("  version: v%d\n", sig.Version)
		fmt.Printf("  series:  %d/%d\n", sig.SeriesIndex, sig.SeriesTotal)
		var flags []string
		for _, f := range []struct {
			name string
			set  bool
		}{
			{"reply", sig.Reply},
			{"patch", sig.Patch},
			{"rfc", sig.RFC},
			{"resend", sig.Resend},
			{"cover-letter", sig.IsCoverLetter()},
			{"malformed", sig.Malformed},
		} {
			if f.set {
				flags = append(flags, f.name)
			}
		}
		if len(flags) > 0 {
			fmt.Printf("  flags:   %s\n", strings.Join(flags, ", "))
		}
		return nil
	},
}

func init() {
	signatureCmd.Flags().BoolVar(&signatureJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(signatureCmd)
}
