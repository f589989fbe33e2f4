package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lkml/mergetrace/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create an empty archive database with the expected tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := db.OpenDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.EnsureSchema(commandContext(cmd)); err != nil {
			return err
		}
		fmt.Printf("  initialized %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
