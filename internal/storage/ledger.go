package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

// AppendLedgerEntry records a committed merge in the correlation ledger.
// The ledger is append-only; entries are never updated in place.
func (s *SQLiteStorage) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerEntry(entry); err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO correlation_ledger (correlation_id, merged_into, absorbed, confidence, classification, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.CorrelationID,
		entry.MergedInto,
		entry.Absorbed,
		entry.Confidence,
		string(entry.Classification),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to append ledger entry: %v", common.ErrStoreUnavailable, err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		entry.ID = id
	}
	return nil
}

// ListLedgerEntries returns the merge history for a surviving transaction,
// most recent first.
func (s *SQLiteStorage) ListLedgerEntries(ctx context.Context, mergedInto string) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(mergedInto, "mergedInto"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, merged_into, absorbed, confidence, classification, created_at
		FROM correlation_ledger
		WHERE merged_into = ?
		ORDER BY id DESC
	`, mergedInto)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query ledger: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanLedgerEntries(rows)
}

// ListRecentLedgerEntries returns the most recent merges across all records.
func (s *SQLiteStorage) ListRecentLedgerEntries(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, merged_into, absorbed, confidence, classification, created_at
		FROM correlation_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query ledger: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanLedgerEntries(rows)
}

type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLedgerEntries(rows rowIterator) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		var classification string
		if err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.MergedInto,
			&entry.Absorbed,
			&entry.Confidence,
			&classification,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan ledger entry: %v", common.ErrStoreUnavailable, err)
		}
		entry.Classification = model.Classification(classification)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate ledger entries: %v", common.ErrStoreUnavailable, err)
	}
	return entries, nil
}
