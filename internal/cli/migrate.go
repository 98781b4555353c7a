package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledger-tools/hledger2bagels/internal/config"
	"github.com/ledger-tools/hledger2bagels/internal/logger"
	"github.com/ledger-tools/hledger2bagels/internal/metrics"
	"github.com/ledger-tools/hledger2bagels/internal/migrator"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringP("config", "c", "", "Path to a TOML config file")
	migrateCmd.Flags().Bool("dry-run", false, "Run all passes, then roll back instead of committing")
	migrateCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while migrating (e.g. 127.0.0.1:9190)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate LEDGER_CSV BAGELS_DB",
	Short: "Migrate postings from an hledger CSV into a Bagels database",
	Long: `Migrate runs three passes inside a single transaction: distinct account
names, one split per posting, then one record per transaction with its splits
back-filled. Any failure rolls back every write of the run.`,
	Args: cobra.ExactArgs(2),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	csvPath, dbPath := args[0], args[1]
	log := logger.New()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = cfg.Migrate.MetricsAddr
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	coll, reg := metrics.New()
	if metricsAddr != "" {
		srv := metrics.NewServer(metricsAddr, reg)
		errc := srv.Start()
		log.Info().Str("addr", metricsAddr).Msg("metrics listener up")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Stop(ctx)
			if err := <-errc; err != nil {
				log.Warn().Err(err).Msg("metrics listener")
			}
		}()
	}

	m := migrator.New(csvPath, dbPath, cfg, log, coll)
	m.DryRun = dryRun

	report, err := m.Migrate(cmd.Context())
	if err != nil {
		return err
	}

	if report.DryRun {
		fmt.Fprintf(os.Stdout,
			"Dry run: would create %d account(s), %d split(s), %d record(s). Nothing was written.\n",
			report.AccountsCreated, report.SplitsCreated, report.RecordsCreated)
		return nil
	}

	fmt.Fprintln(os.Stdout, "Migration completed successfully!")
	fmt.Fprintf(os.Stdout, "  run:      %s\n", report.RunID)
	fmt.Fprintf(os.Stdout, "  accounts: %d\n", report.AccountsCreated)
	fmt.Fprintf(os.Stdout, "  splits:   %d\n", report.SplitsCreated)
	fmt.Fprintf(os.Stdout, "  records:  %d\n", report.RecordsCreated)
	fmt.Fprintf(os.Stdout, "  took:     %s\n", report.Duration.Round(time.Millisecond))
	return nil
}
