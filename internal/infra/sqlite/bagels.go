// Write-side operations on the Bagels tables. All writes of a migration run
// go through one Tx and either commit together or vanish together.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledger-tools/hledger2bagels/internal/domain"
)

// Tx is the migration transaction.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.done = true
	return t.tx.Commit()
}

// Rollback rolls the transaction back. Safe to defer after a commit or an
// explicit rollback.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// ─── Account Operations ─────────────────────────────────────────────────────

// InsertAccount registers an account name, silently skipping names that
// already exist. New accounts get no description, a zero beginning balance,
// and are not hidden. It reports whether a row was actually created.
func (t *Tx) InsertAccount(name string) (bool, error) {
	res, err := t.tx.Exec(`
		INSERT OR IGNORE INTO account (createdAt, updatedAt, name, description, beginningBalance, hidden)
		VALUES (datetime('now'), datetime('now'), ?, NULL, '0', 0)
	`, name)
	if err != nil {
		return false, fmt.Errorf("insert account %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AccountID resolves an account name to its id. A miss is an invariant
// violation: accounts are always imported before anything references them.
func (t *Tx) AccountID(name string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(`SELECT id FROM account WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", domain.ErrAccountNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("look up account %q: %w", name, err)
	}
	return id, nil
}

// ─── Split Operations ───────────────────────────────────────────────────────

// InsertSplit inserts one split with no owning record yet; the records pass
// back-fills recordId once the transaction's total is known. Migrated splits
// carry no person and are unpaid.
func (t *Tx) InsertSplit(amount decimal.Decimal, accountID int64) (int64, error) {
	res, err := t.tx.Exec(`
		INSERT INTO split (createdAt, updatedAt, recordId, amount, personId, isPaid, paidDate, accountId)
		VALUES (datetime('now'), datetime('now'), NULL, ?, NULL, 0, NULL, ?)
	`, amount.String(), accountID)
	if err != nil {
		return 0, fmt.Errorf("insert split: %w", err)
	}
	return res.LastInsertId()
}

// SplitAmounts reads back the amounts of the given splits. The sum is taken
// in decimal on the Go side; SQLite's SUM() would coerce to float.
func (t *Tx) SplitAmounts(ids []int64) ([]decimal.Decimal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := t.tx.Query(`SELECT amount FROM split WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("read split amounts: %w", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		a, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("split amount %q: %w", raw, err)
		}
		amounts = append(amounts, a)
	}
	return amounts, rows.Err()
}

// AttachSplit sets a split's owning record.
func (t *Tx) AttachSplit(splitID, recordID int64) error {
	_, err := t.tx.Exec(`
		UPDATE split SET recordId = ?, updatedAt = datetime('now') WHERE id = ?
	`, recordID, splitID)
	if err != nil {
		return fmt.Errorf("attach split %d to record %d: %w", splitID, recordID, err)
	}
	return nil
}

// ─── Posting Staging ────────────────────────────────────────────────────────

// StagePosting copies one source row into the postings table, where the
// records pass looks up each transaction's description and date.
func (t *Tx) StagePosting(p domain.Posting) error {
	_, err := t.tx.Exec(`
		INSERT INTO postings (txnidx, account, amount, description, date1)
		VALUES (?, ?, ?, ?, ?)
	`, p.TxnIndex, p.Account, p.Amount.String(), p.Description, p.Date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("stage posting: %w", err)
	}
	return nil
}

// TxnDetails returns the description and date of the first staged posting for
// a transaction index.
func (t *Tx) TxnDetails(txnIdx string) (string, time.Time, error) {
	var desc sql.NullString
	var dateStr string
	err := t.tx.QueryRow(`
		SELECT description, date1 FROM postings WHERE txnidx = ? ORDER BY id LIMIT 1
	`, txnIdx).Scan(&desc, &dateStr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, fmt.Errorf("%w: %q", domain.ErrTxnNotFound, txnIdx)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("look up transaction %q: %w", txnIdx, err)
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("staged date %q: %w", dateStr, err)
	}
	return desc.String, date, nil
}

// ─── Record Operations ──────────────────────────────────────────────────────

// InsertRecord inserts one record for a whole transaction. accountId is left
// NULL and isTransfer false, per the Bagels import conventions.
func (t *Tx) InsertRecord(rec domain.Record) (int64, error) {
	income := 0
	if rec.IsIncome {
		income = 1
	}
	res, err := t.tx.Exec(`
		INSERT INTO record (createdAt, updatedAt, label, amount, date, accountId, isIncome, isTransfer)
		VALUES (datetime('now'), datetime('now'), ?, ?, ?, NULL, ?, 0)
	`, rec.Label, rec.Amount.String(), rec.Date.Format(dateLayout), income)
	if err != nil {
		return 0, fmt.Errorf("insert record %q: %w", rec.Label, err)
	}
	return res.LastInsertId()
}
