// Package cli wires the hledger2bagels commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hledger2bagels",
	Short: "Migrate an hledger CSV export into a Bagels database",
	Long: `hledger2bagels moves a plain-text accounting export into the Bagels
personal finance app. Export your journal first:

  hledger -f journal.ledger print -O csv > ledger.csv

then migrate it in one shot:

  hledger2bagels migrate ledger.csv ~/.local/share/bagels/db.db

The migration is all-or-nothing: on any error the destination database is
left exactly as it was.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "hledger2bagels %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
