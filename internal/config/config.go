// Package config holds the migration tool's TOML configuration.
// Defaults match the output of `hledger print -O csv`; a config file is only
// needed when the export uses different column names or date formats.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration.
type Config struct {
	CSV     CSVConfig     `toml:"csv"`
	Migrate MigrateConfig `toml:"migrate"`
}

// CSVConfig maps source CSV columns onto posting fields.
type CSVConfig struct {
	TxnIndexColumn    string `toml:"txnidx_column"`
	AccountColumn     string `toml:"account_column"`
	AmountColumn      string `toml:"amount_column"`
	DescriptionColumn string `toml:"description_column"`
	DateColumn        string `toml:"date_column"`
	Delimiter         string `toml:"delimiter"`   // single character
	DateLayout        string `toml:"date_layout"` // Go reference layout
}

// MigrateConfig tunes the migration run itself.
type MigrateConfig struct {
	MetricsAddr string `toml:"metrics_addr"` // empty = no metrics listener
}

// DefaultConfig returns the configuration for an untouched hledger export.
func DefaultConfig() Config {
	return Config{
		CSV: CSVConfig{
			TxnIndexColumn:    "txnidx",
			AccountColumn:     "account",
			AmountColumn:      "amount",
			DescriptionColumn: "description",
			DateColumn:        "date1",
			Delimiter:         ",",
			DateLayout:        "2006-01-02",
		},
	}
}

// Load reads a TOML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the CSV reader cannot honor.
func (c Config) Validate() error {
	if len(c.CSV.Delimiter) != 1 {
		return fmt.Errorf("csv.delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	for name, v := range map[string]string{
		"csv.txnidx_column":      c.CSV.TxnIndexColumn,
		"csv.account_column":     c.CSV.AccountColumn,
		"csv.amount_column":      c.CSV.AmountColumn,
		"csv.description_column": c.CSV.DescriptionColumn,
		"csv.date_column":        c.CSV.DateColumn,
		"csv.date_layout":        c.CSV.DateLayout,
	} {
		if v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
