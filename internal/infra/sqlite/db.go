// Bagels SQLite schema and connection handling.
// The destination database is a plain file; tables are created if absent so a
// fresh file works, and an existing Bagels database is used as-is.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// dateLayout is how dates are stored in the Bagels tables.
const dateLayout = "2006-01-02"

// DB wraps the destination database handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and bootstraps the schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One connection: the whole run happens inside a single transaction.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, path: path}
	for _, stmt := range Migrations() {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Begin starts the migration transaction.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, executed one at a time.
// Column names match the Bagels application schema. Amount columns are TEXT
// holding decimal strings so sums carry no float drift.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS account (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			createdAt        TEXT NOT NULL DEFAULT (datetime('now')),
			updatedAt        TEXT NOT NULL DEFAULT (datetime('now')),
			name             TEXT NOT NULL UNIQUE,
			description      TEXT,
			beginningBalance TEXT NOT NULL DEFAULT '0',
			hidden           INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS split (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			createdAt TEXT NOT NULL DEFAULT (datetime('now')),
			updatedAt TEXT NOT NULL DEFAULT (datetime('now')),
			recordId  INTEGER,
			amount    TEXT NOT NULL,
			personId  INTEGER,
			isPaid    INTEGER NOT NULL DEFAULT 0,
			paidDate  TEXT,
			accountId INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_split_record ON split(recordId)`,
		`CREATE INDEX IF NOT EXISTS idx_split_account ON split(accountId)`,

		`CREATE TABLE IF NOT EXISTS record (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			createdAt  TEXT NOT NULL DEFAULT (datetime('now')),
			updatedAt  TEXT NOT NULL DEFAULT (datetime('now')),
			label      TEXT NOT NULL,
			amount     TEXT NOT NULL,
			date       TEXT NOT NULL,
			accountId  INTEGER,
			isIncome   INTEGER NOT NULL DEFAULT 0,
			isTransfer INTEGER NOT NULL DEFAULT 0
		)`,

		// Source rows staged per run; the records pass looks up each
		// transaction's description and date here by txnidx.
		`CREATE TABLE IF NOT EXISTS postings (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			txnidx      TEXT NOT NULL,
			account     TEXT NOT NULL,
			amount      TEXT NOT NULL,
			description TEXT,
			date1       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_txnidx ON postings(txnidx)`,
	}
}
