package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers wrap these
// with row/table context via fmt.Errorf("...: %w", ...).

var (
	// Lookup errors
	ErrAccountNotFound = errors.New("account not found")
	ErrTxnNotFound     = errors.New("no posting found for transaction index")

	// Source errors
	ErrMissingColumn = errors.New("required column missing from CSV header")
	ErrEmptyField    = errors.New("required field is empty")

	// Verification errors
	ErrOrphanSplit    = errors.New("split has no owning record")
	ErrAmountMismatch = errors.New("record amount does not equal sum of its splits")
)
