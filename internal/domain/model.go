// Package domain contains pure business types with ZERO infrastructure imports.
// Everything else in the tool maps into or out of these.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Source Types ───────────────────────────────────────────────────────────

// Posting is one leg of a double-entry transaction as exported by
// `hledger print -O csv`. Postings sharing a TxnIndex belong to the same
// logical transaction.
type Posting struct {
	TxnIndex    string          // grouping key, opaque (hledger emits ints)
	Account     string          // full account name, e.g. "expenses:food"
	Amount      decimal.Decimal // signed; negative = money out
	Description string
	Date        time.Time
}

// ─── Destination Types (Bagels schema) ──────────────────────────────────────

// Account mirrors a row of the Bagels `account` table.
type Account struct {
	ID               int64
	Name             string
	Description      string
	BeginningBalance decimal.Decimal
	Hidden           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Split mirrors a row of the Bagels `split` table: one posting, owned by a
// record. RecordID is nil until the records pass back-fills it.
type Split struct {
	ID        int64
	RecordID  *int64
	Amount    decimal.Decimal
	AccountID int64
	PersonID  *int64 // always nil for migrated splits
	IsPaid    bool   // always false for migrated splits
	PaidDate  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record mirrors a row of the Bagels `record` table: one whole transaction,
// aggregating its splits.
type Record struct {
	ID         int64
	Label      string
	Amount     decimal.Decimal // exact sum of the owned splits' amounts
	Date       time.Time
	AccountID  *int64 // intentionally unset by the migration
	IsIncome   bool
	IsTransfer bool // never true for migrated records
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRecord builds a record for a migrated transaction. IsIncome is derived
// from the total: strictly positive means income, so a balanced transaction
// (total zero) is not income.
func NewRecord(label string, total decimal.Decimal, date time.Time) Record {
	return Record{
		Label:    label,
		Amount:   total,
		Date:     date,
		IsIncome: total.IsPositive(),
	}
}

// SumAmounts returns the exact decimal sum of the given amounts.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
