package main

import (
	"os"

	"github.com/ledger-tools/hledger2bagels/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
