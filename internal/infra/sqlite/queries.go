// Read-side queries, used by the verify command and by tests. These run
// outside the migration transaction.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledger-tools/hledger2bagels/internal/domain"
)

// ─── Counts ─────────────────────────────────────────────────────────────────

func (db *DB) count(query string, args ...any) (int, error) {
	var n int
	err := db.db.QueryRow(query, args...).Scan(&n)
	return n, err
}

// AccountCount returns the number of accounts.
func (db *DB) AccountCount() (int, error) {
	return db.count(`SELECT COUNT(*) FROM account`)
}

// SplitCount returns the number of splits.
func (db *DB) SplitCount() (int, error) {
	return db.count(`SELECT COUNT(*) FROM split`)
}

// RecordCount returns the number of records.
func (db *DB) RecordCount() (int, error) {
	return db.count(`SELECT COUNT(*) FROM record`)
}

// PostingCount returns the number of staged postings.
func (db *DB) PostingCount() (int, error) {
	return db.count(`SELECT COUNT(*) FROM postings`)
}

// SplitCountForRecord returns how many splits reference the given record.
func (db *DB) SplitCountForRecord(recordID int64) (int, error) {
	return db.count(`SELECT COUNT(*) FROM split WHERE recordId = ?`, recordID)
}

// ─── Row Readers ────────────────────────────────────────────────────────────

// AccountNames returns all account names, sorted.
func (db *DB) AccountNames() ([]string, error) {
	rows, err := db.db.Query(`SELECT name FROM account ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Records returns all records in insertion order.
func (db *DB) Records() ([]domain.Record, error) {
	rows, err := db.db.Query(`
		SELECT id, label, amount, date, accountId, isIncome, isTransfer FROM record ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var r domain.Record
		var amountStr, dateStr string
		var accountID sql.NullInt64
		var income, transfer int
		if err := rows.Scan(&r.ID, &r.Label, &amountStr, &dateStr, &accountID, &income, &transfer); err != nil {
			return nil, err
		}
		if r.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("record %d amount %q: %w", r.ID, amountStr, err)
		}
		if r.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("record %d date: %w", r.ID, err)
		}
		if accountID.Valid {
			r.AccountID = &accountID.Int64
		}
		r.IsIncome = income == 1
		r.IsTransfer = transfer == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// Splits returns all splits in insertion order.
func (db *DB) Splits() ([]domain.Split, error) {
	rows, err := db.db.Query(`
		SELECT id, recordId, amount, accountId, personId, isPaid FROM split ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []domain.Split
	for rows.Next() {
		var s domain.Split
		var recordID, personID sql.NullInt64
		var amountStr string
		var paid int
		if err := rows.Scan(&s.ID, &recordID, &amountStr, &s.AccountID, &personID, &paid); err != nil {
			return nil, err
		}
		if s.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("split %d amount %q: %w", s.ID, amountStr, err)
		}
		if recordID.Valid {
			s.RecordID = &recordID.Int64
		}
		if personID.Valid {
			s.PersonID = &personID.Int64
		}
		s.IsPaid = paid == 1
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

// ─── Integrity Checks ───────────────────────────────────────────────────────

// CheckIntegrity verifies the migrated data's invariants: every split owned
// by an existing record, every split's account resolvable, and every record's
// amount equal to the exact decimal sum of its splits. It returns one message
// per violation; an empty slice means the database is consistent.
func (db *DB) CheckIntegrity() ([]string, error) {
	var violations []string

	orphans, err := db.count(`
		SELECT COUNT(*) FROM split
		WHERE recordId IS NULL OR recordId NOT IN (SELECT id FROM record)
	`)
	if err != nil {
		return nil, fmt.Errorf("check split ownership: %w", err)
	}
	if orphans > 0 {
		violations = append(violations,
			fmt.Sprintf("%v: %d split(s)", domain.ErrOrphanSplit, orphans))
	}

	badAccounts, err := db.count(`
		SELECT COUNT(*) FROM split WHERE accountId NOT IN (SELECT id FROM account)
	`)
	if err != nil {
		return nil, fmt.Errorf("check split accounts: %w", err)
	}
	if badAccounts > 0 {
		violations = append(violations,
			fmt.Sprintf("%d split(s) referencing a missing account", badAccounts))
	}

	records, err := db.Records()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	splits, err := db.Splits()
	if err != nil {
		return nil, fmt.Errorf("read splits: %w", err)
	}

	sums := make(map[int64]decimal.Decimal)
	for _, s := range splits {
		if s.RecordID == nil {
			continue
		}
		sums[*s.RecordID] = sums[*s.RecordID].Add(s.Amount)
	}
	for _, r := range records {
		if !r.Amount.Equal(sums[r.ID]) {
			violations = append(violations, fmt.Sprintf(
				"%v: record %d (%q) has %s, splits sum to %s",
				domain.ErrAmountMismatch, r.ID, r.Label, r.Amount, sums[r.ID]))
		}
	}
	return violations, nil
}
