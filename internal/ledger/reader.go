// Package ledger reads posting rows out of an hledger CSV export.
//
// The export of `hledger print -O csv` has one row per posting; rows sharing
// a txnidx are the legs of one double-entry transaction. The reader streams:
// each pass over the file opens, scans, and closes it independently, so
// nothing is held in memory beyond the single row in flight.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledger-tools/hledger2bagels/internal/config"
	"github.com/ledger-tools/hledger2bagels/internal/domain"
)

// Reader scans postings from a CSV file according to a column mapping.
type Reader struct {
	path string
	cfg  config.CSVConfig
}

// NewReader creates a reader for the export at path.
func NewReader(path string, cfg config.CSVConfig) *Reader {
	return &Reader{path: path, cfg: cfg}
}

// Scan opens the file, calls fn for every posting row in order, and closes
// the file. The first error (malformed CSV, unmappable row, or fn itself)
// stops the scan; row mapping errors carry the offending line number.
func (r *Reader) Scan(fn func(domain.Posting) error) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open ledger csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	if r.cfg.Delimiter != "" {
		cr.Comma = rune(r.cfg.Delimiter[0])
	}
	cr.FieldsPerRecord = -1 // hledger pads some columns; map by header instead

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("ledger csv %s: %w", r.path, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("read csv header: %w", err)
	}

	cols, err := r.mapColumns(header)
	if err != nil {
		return err
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv row: %w", err)
		}
		line++

		p, err := cols.posting(row, r.cfg.DateLayout)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", r.path, line, err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
}

// ─── Column Mapping ─────────────────────────────────────────────────────────

type columnIndex struct {
	txnIdx, account, amount, description, date int
}

func (r *Reader) mapColumns(header []string) (columnIndex, error) {
	find := func(name string) (int, error) {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: %q", domain.ErrMissingColumn, name)
	}

	var ci columnIndex
	var err error
	if ci.txnIdx, err = find(r.cfg.TxnIndexColumn); err != nil {
		return ci, err
	}
	if ci.account, err = find(r.cfg.AccountColumn); err != nil {
		return ci, err
	}
	if ci.amount, err = find(r.cfg.AmountColumn); err != nil {
		return ci, err
	}
	if ci.description, err = find(r.cfg.DescriptionColumn); err != nil {
		return ci, err
	}
	if ci.date, err = find(r.cfg.DateColumn); err != nil {
		return ci, err
	}
	return ci, nil
}

func (ci columnIndex) posting(row []string, dateLayout string) (domain.Posting, error) {
	field := func(idx int, name string) (string, error) {
		if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
			return "", fmt.Errorf("%w: %s", domain.ErrEmptyField, name)
		}
		return strings.TrimSpace(row[idx]), nil
	}

	var p domain.Posting
	var err error
	if p.TxnIndex, err = field(ci.txnIdx, "txnidx"); err != nil {
		return p, err
	}
	if p.Account, err = field(ci.account, "account"); err != nil {
		return p, err
	}

	raw, err := field(ci.amount, "amount")
	if err != nil {
		return p, err
	}
	if p.Amount, err = parseAmount(raw); err != nil {
		return p, fmt.Errorf("parse amount %q: %w", raw, err)
	}

	// Description may legitimately be blank.
	if ci.description < len(row) {
		p.Description = strings.TrimSpace(row[ci.description])
	}

	rawDate, err := field(ci.date, "date")
	if err != nil {
		return p, err
	}
	if p.Date, err = time.Parse(dateLayout, rawDate); err != nil {
		return p, fmt.Errorf("parse date %q: %w", rawDate, err)
	}
	return p, nil
}

// parseAmount handles hledger's amount forms: a leading currency symbol or
// trailing commodity ("$-50", "-50.00 USD") and thousands separators.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := raw
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i] // drop trailing commodity
	}
	for _, sym := range []string{"$", "€", "£", "¥", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	return decimal.NewFromString(s)
}
