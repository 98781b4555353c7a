package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledger-tools/hledger2bagels/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify BAGELS_DB",
	Short: "Check a migrated database's invariants",
	Long: `Verify reads a Bagels database and checks migration invariants: every
split owned by an existing record, every split's account resolvable, and
every record's amount equal to the exact sum of its splits' amounts.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	db, err := sqlite.Open(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	violations, err := db.CheckIntegrity()
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "violation: %s\n", v)
		}
		return fmt.Errorf("%d integrity violation(s) found", len(violations))
	}

	records, err := db.RecordCount()
	if err != nil {
		return err
	}
	splits, err := db.SplitCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "OK: %d record(s), %d split(s), all invariants hold.\n", records, splits)
	return nil
}
