package config

import (
	"os"
	"strings"
)

// StrictReceiptRowLocks makes reconciliation take FOR UPDATE row locks on the
// order item and catalog item rows before recomputing the ledger delta.
// Without it, consistency relies on the transaction isolation level alone.
//
// Set via env:
// - STRICT_RECEIPT_ROW_LOCKS=true (default on; set to false/0/no to disable)
func StrictReceiptRowLocks() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_RECEIPT_ROW_LOCKS")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RequireStockLock makes the best-effort redis stock lock mandatory: if the
// lock cannot be obtained the mutation fails instead of proceeding unlocked.
//
// Set via env:
// - REQUIRE_STOCK_LOCK=true
func RequireStockLock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_STOCK_LOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
