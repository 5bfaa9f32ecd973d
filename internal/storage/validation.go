package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quiltmoney/quilt/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidLedgerEntry = errors.New("invalid ledger entry")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction prior to persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Owner == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidTransaction)
	}
	if txn.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidTransaction)
	}
	if txn.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurredAt", ErrInvalidTransaction)
	}
	if txn.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidTransaction)
	}
	switch txn.Status {
	case "", model.StatusActive, model.StatusAbsorbed:
		// Valid
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, txn.Status)
	}
	return nil
}

// validateLedgerEntry validates a ledger entry prior to persistence.
func validateLedgerEntry(entry *model.LedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.MergedInto == "" {
		return fmt.Errorf("%w: missing mergedInto", ErrInvalidLedgerEntry)
	}
	if entry.Absorbed == "" {
		return fmt.Errorf("%w: missing absorbed", ErrInvalidLedgerEntry)
	}
	if entry.Confidence < 0 || entry.Confidence > 100 {
		return fmt.Errorf("%w: confidence must be between 0 and 100", ErrInvalidLedgerEntry)
	}
	return nil
}
