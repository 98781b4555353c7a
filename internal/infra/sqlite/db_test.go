package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledger-tools/hledger2bagels/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "bagels.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTx(t *testing.T, db *DB) *Tx {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	return tx
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// ─── Schema ─────────────────────────────────────────────────────────────────

func TestOpen_BootstrapsSchema(t *testing.T) {
	db := newTestDB(t)

	for _, check := range []func() (int, error){
		db.AccountCount, db.SplitCount, db.RecordCount, db.PostingCount,
	} {
		if n, err := check(); err != nil || n != 0 {
			t.Errorf("fresh table count = %d, err = %v, want 0, nil", n, err)
		}
	}
}

func TestOpen_ExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bagels.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	tx := newTestTx(t, db)
	if _, err := tx.InsertAccount("assets:checking"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	db.Close()

	// Reopening must not disturb existing rows.
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db2.Close()
	if n, _ := db2.AccountCount(); n != 1 {
		t.Errorf("AccountCount() after reopen = %d, want 1", n)
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestInsertAccount_DuplicateIgnored(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	defer tx.Rollback()

	created, err := tx.InsertAccount("expenses:food")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first InsertAccount() created = false, want true")
	}
	created, err = tx.InsertAccount("expenses:food")
	if err != nil {
		t.Fatalf("duplicate InsertAccount() error: %v", err)
	}
	if created {
		t.Error("duplicate InsertAccount() created = true, want false")
	}

	id1, err := tx.AccountID("expenses:food")
	if err != nil {
		t.Fatalf("AccountID() error: %v", err)
	}
	if id1 == 0 {
		t.Error("AccountID() = 0, want a generated id")
	}
}

func TestAccountID_NotFound(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	defer tx.Rollback()

	_, err := tx.AccountID("ghost")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("AccountID(ghost) error = %v, want ErrAccountNotFound", err)
	}
}

// ─── Splits ─────────────────────────────────────────────────────────────────

func TestInsertSplit_AndReadBack(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	if _, err := tx.InsertAccount("assets:checking"); err != nil {
		t.Fatal(err)
	}
	accID, err := tx.AccountID("assets:checking")
	if err != nil {
		t.Fatal(err)
	}

	id1, err := tx.InsertSplit(d(t, "-50.10"), accID)
	if err != nil {
		t.Fatalf("InsertSplit() error: %v", err)
	}
	id2, err := tx.InsertSplit(d(t, "0.2"), accID)
	if err != nil {
		t.Fatal(err)
	}

	amounts, err := tx.SplitAmounts([]int64{id1, id2})
	if err != nil {
		t.Fatalf("SplitAmounts() error: %v", err)
	}
	if len(amounts) != 2 {
		t.Fatalf("len(amounts) = %d, want 2", len(amounts))
	}
	sum := domain.SumAmounts(amounts)
	if !sum.Equal(d(t, "-49.90")) {
		t.Errorf("sum = %s, want -49.90", sum)
	}

	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	splits, err := db.Splits()
	if err != nil {
		t.Fatal(err)
	}
	if splits[0].RecordID != nil {
		t.Error("new split should have no owning record")
	}
	if splits[0].PersonID != nil || splits[0].IsPaid {
		t.Error("migrated splits must be unpaid with no person")
	}
}

func TestSplitAmounts_Empty(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	defer tx.Rollback()

	amounts, err := tx.SplitAmounts(nil)
	if err != nil {
		t.Fatalf("SplitAmounts(nil) error: %v", err)
	}
	if amounts != nil {
		t.Errorf("SplitAmounts(nil) = %v, want nil", amounts)
	}
}

func TestAttachSplit(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	if _, err := tx.InsertAccount("a"); err != nil {
		t.Fatal(err)
	}
	accID, _ := tx.AccountID("a")
	splitID, _ := tx.InsertSplit(d(t, "5"), accID)
	recID, err := tx.InsertRecord(domain.NewRecord("x", d(t, "5"), time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.AttachSplit(splitID, recID); err != nil {
		t.Fatalf("AttachSplit() error: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	splits, _ := db.Splits()
	if splits[0].RecordID == nil || *splits[0].RecordID != recID {
		t.Errorf("split.RecordID = %v, want %d", splits[0].RecordID, recID)
	}
}

// ─── Postings ───────────────────────────────────────────────────────────────

func TestStagePosting_AndTxnDetails(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	defer tx.Rollback()

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i, amt := range []string{"-20", "20"} {
		p := domain.Posting{
			TxnIndex:    "7",
			Account:     "a",
			Amount:      d(t, amt),
			Description: "Lunch",
			Date:        date,
		}
		if i == 1 {
			p.Description = "should not win" // only the first row is representative
		}
		if err := tx.StagePosting(p); err != nil {
			t.Fatalf("StagePosting() error: %v", err)
		}
	}

	desc, gotDate, err := tx.TxnDetails("7")
	if err != nil {
		t.Fatalf("TxnDetails() error: %v", err)
	}
	if desc != "Lunch" {
		t.Errorf("description = %q, want %q (first matching row)", desc, "Lunch")
	}
	if !gotDate.Equal(date) {
		t.Errorf("date = %s, want %s", gotDate, date)
	}
}

func TestTxnDetails_NotFound(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	defer tx.Rollback()

	_, _, err := tx.TxnDetails("99")
	if !errors.Is(err, domain.ErrTxnNotFound) {
		t.Errorf("TxnDetails(99) error = %v, want ErrTxnNotFound", err)
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

func TestInsertRecord(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := domain.NewRecord("Salary", d(t, "1200.00"), date)
	id, err := tx.InsertRecord(rec)
	if err != nil {
		t.Fatalf("InsertRecord() error: %v", err)
	}
	if id == 0 {
		t.Error("InsertRecord() id = 0, want generated id")
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	records, err := db.Records()
	if err != nil {
		t.Fatal(err)
	}
	got := records[0]
	if got.Label != "Salary" {
		t.Errorf("Label = %q, want %q", got.Label, "Salary")
	}
	if !got.Amount.Equal(d(t, "1200")) {
		t.Errorf("Amount = %s, want 1200", got.Amount)
	}
	if !got.IsIncome {
		t.Error("IsIncome = false, want true for positive amount")
	}
	if got.IsTransfer {
		t.Error("IsTransfer = true, want false")
	}
	if got.AccountID != nil {
		t.Error("AccountID should be left NULL")
	}
	if !got.Date.Equal(date) {
		t.Errorf("Date = %s, want %s", got.Date, date)
	}
}

// ─── Rollback / Integrity ───────────────────────────────────────────────────

func TestRollback_DiscardsEverything(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	if _, err := tx.InsertAccount("a"); err != nil {
		t.Fatal(err)
	}
	accID, _ := tx.AccountID("a")
	if _, err := tx.InsertSplit(d(t, "5"), accID); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	if n, _ := db.AccountCount(); n != 0 {
		t.Errorf("AccountCount() after rollback = %d, want 0", n)
	}
	if n, _ := db.SplitCount(); n != 0 {
		t.Errorf("SplitCount() after rollback = %d, want 0", n)
	}
}

func TestRollback_AfterCommitIsNoop(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)
	if _, err := tx.InsertAccount("a"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback() after Commit() error: %v", err)
	}
	if n, _ := db.AccountCount(); n != 1 {
		t.Errorf("AccountCount() = %d, want 1", n)
	}
}

func TestCheckIntegrity_Consistent(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	tx.InsertAccount("a")
	accID, _ := tx.AccountID("a")
	s1, _ := tx.InsertSplit(d(t, "-50"), accID)
	s2, _ := tx.InsertSplit(d(t, "50"), accID)
	recID, _ := tx.InsertRecord(domain.NewRecord("g", d(t, "0"), time.Now()))
	tx.AttachSplit(s1, recID)
	tx.AttachSplit(s2, recID)
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	violations, err := db.CheckIntegrity()
	if err != nil {
		t.Fatalf("CheckIntegrity() error: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("CheckIntegrity() = %v, want none", violations)
	}
}

func TestCheckIntegrity_Violations(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTx(t, db)

	tx.InsertAccount("a")
	accID, _ := tx.AccountID("a")
	tx.InsertSplit(d(t, "5"), accID) // never attached: orphan
	s2, _ := tx.InsertSplit(d(t, "5"), accID)
	recID, _ := tx.InsertRecord(domain.NewRecord("bad", d(t, "999"), time.Now()))
	tx.AttachSplit(s2, recID) // record amount disagrees with split sum
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	violations, err := db.CheckIntegrity()
	if err != nil {
		t.Fatalf("CheckIntegrity() error: %v", err)
	}
	if len(violations) != 2 {
		t.Errorf("CheckIntegrity() found %d violations, want 2: %v", len(violations), violations)
	}
}
