// Package migrator moves an hledger CSV export into a Bagels database.
//
// The migration is three sequential passes inside one transaction:
//
//  1. accounts — first CSV scan; insert-or-skip every distinct account name.
//  2. splits   — second CSV scan; one split per posting, owning record left
//     NULL, and the source row staged into the postings table. The pass
//     returns a txnidx → split-ids map; nothing else crosses passes.
//  3. records  — per transaction index: sum the inserted splits' amounts,
//     look up the representative description and date, insert one record,
//     and back-fill every split in the group with the record's id.
//
// The two-phase split/record write is deliberate: a record's total is only
// known after all of its postings have been seen. Any failure rolls the whole
// transaction back and the original error propagates to the caller.
package migrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledger-tools/hledger2bagels/internal/config"
	"github.com/ledger-tools/hledger2bagels/internal/domain"
	"github.com/ledger-tools/hledger2bagels/internal/infra/sqlite"
	"github.com/ledger-tools/hledger2bagels/internal/ledger"
	"github.com/ledger-tools/hledger2bagels/internal/metrics"
)

// Migrator performs a single migration run.
type Migrator struct {
	csvPath string
	dbPath  string
	cfg     config.Config
	log     zerolog.Logger
	coll    *metrics.Collectors

	// DryRun runs all three passes and then rolls back instead of
	// committing, reporting what would have been written.
	DryRun bool

	// afterSplits runs between the splits and records passes. Tests use it
	// to force a mid-run failure and assert atomicity.
	afterSplits func() error
}

// Report summarizes a completed run.
type Report struct {
	RunID           uuid.UUID
	PostingsRead    int
	AccountsCreated int
	SplitsCreated   int
	RecordsCreated  int
	Duration        time.Duration
	DryRun          bool
}

// New creates a Migrator. The collectors may be shared with a metrics
// listener owned by the caller.
func New(csvPath, dbPath string, cfg config.Config, log zerolog.Logger, coll *metrics.Collectors) *Migrator {
	return &Migrator{
		csvPath: csvPath,
		dbPath:  dbPath,
		cfg:     cfg,
		log:     log,
		coll:    coll,
	}
}

// Migrate runs the full migration. All destination writes happen inside one
// transaction: on any error nothing survives, and the database handle is
// closed in every outcome.
func (m *Migrator) Migrate(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New(), DryRun: m.DryRun}

	m.log.Info().
		Str("run_id", report.RunID.String()).
		Str("csv", m.csvPath).
		Str("db", m.dbPath).
		Bool("dry_run", m.DryRun).
		Msg("starting migration")

	db, err := sqlite.Open(m.dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reader := ledger.NewReader(m.csvPath, m.cfg.CSV)

	if err := m.migrateAccounts(ctx, tx, reader, report); err != nil {
		return nil, err
	}
	txnSplits, order, err := m.migrateSplits(ctx, tx, reader, report)
	if err != nil {
		return nil, err
	}
	if m.afterSplits != nil {
		if err := m.afterSplits(); err != nil {
			return nil, err
		}
	}
	if err := m.migrateRecords(ctx, tx, txnSplits, order, report); err != nil {
		return nil, err
	}

	if m.DryRun {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("dry-run rollback: %w", err)
		}
		report.Duration = time.Since(start)
		m.log.Info().Msg("dry run: all changes rolled back")
		return report, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migration: %w", err)
	}
	report.Duration = time.Since(start)

	m.log.Info().
		Int("accounts", report.AccountsCreated).
		Int("splits", report.SplitsCreated).
		Int("records", report.RecordsCreated).
		Dur("duration", report.Duration).
		Msg("migration committed")
	return report, nil
}

// ─── Pass 1: Accounts ───────────────────────────────────────────────────────

func (m *Migrator) migrateAccounts(ctx context.Context, tx *sqlite.Tx, reader *ledger.Reader, report *Report) error {
	defer m.coll.ObservePass("accounts", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	names := make(map[string]struct{})
	err := reader.Scan(func(p domain.Posting) error {
		names[p.Account] = struct{}{}
		report.PostingsRead++
		m.coll.PostingsRead.Inc()
		return nil
	})
	if err != nil {
		return err
	}

	// Set order is irrelevant to the result; sort for stable logs.
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		created, err := tx.InsertAccount(name)
		if err != nil {
			return err
		}
		if created {
			report.AccountsCreated++
			m.coll.AccountsCreated.Inc()
		}
	}

	m.log.Debug().Int("distinct", len(sorted)).Int("created", report.AccountsCreated).
		Msg("accounts pass done")
	return nil
}

// ─── Pass 2: Splits ─────────────────────────────────────────────────────────

// migrateSplits inserts one split per posting and stages each source row.
// It returns the txnidx → split-ids map the records pass needs, plus the
// transaction indices in first-seen order.
func (m *Migrator) migrateSplits(ctx context.Context, tx *sqlite.Tx, reader *ledger.Reader, report *Report) (map[string][]int64, []string, error) {
	defer m.coll.ObservePass("splits", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	txnSplits := make(map[string][]int64)
	var order []string

	err := reader.Scan(func(p domain.Posting) error {
		report.PostingsRead++
		m.coll.PostingsRead.Inc()

		accountID, err := tx.AccountID(p.Account)
		if err != nil {
			return err
		}
		splitID, err := tx.InsertSplit(p.Amount, accountID)
		if err != nil {
			return err
		}
		if err := tx.StagePosting(p); err != nil {
			return err
		}

		if _, seen := txnSplits[p.TxnIndex]; !seen {
			order = append(order, p.TxnIndex)
		}
		txnSplits[p.TxnIndex] = append(txnSplits[p.TxnIndex], splitID)
		report.SplitsCreated++
		m.coll.SplitsCreated.Inc()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.log.Debug().Int("splits", report.SplitsCreated).Int("transactions", len(order)).
		Msg("splits pass done")
	return txnSplits, order, nil
}

// ─── Pass 3: Records ────────────────────────────────────────────────────────

func (m *Migrator) migrateRecords(ctx context.Context, tx *sqlite.Tx, txnSplits map[string][]int64, order []string, report *Report) error {
	defer m.coll.ObservePass("records", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, txnIdx := range order {
		splitIDs := txnSplits[txnIdx]

		amounts, err := tx.SplitAmounts(splitIDs)
		if err != nil {
			return err
		}
		total := domain.SumAmounts(amounts)

		desc, date, err := tx.TxnDetails(txnIdx)
		if err != nil {
			return err
		}

		recordID, err := tx.InsertRecord(domain.NewRecord(desc, total, date))
		if err != nil {
			return err
		}
		for _, splitID := range splitIDs {
			if err := tx.AttachSplit(splitID, recordID); err != nil {
				return err
			}
		}
		report.RecordsCreated++
		m.coll.RecordsCreated.Inc()
	}

	m.log.Debug().Int("records", report.RecordsCreated).Msg("records pass done")
	return nil
}
