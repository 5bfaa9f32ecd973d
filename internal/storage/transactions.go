package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

const transactionColumns = `id, owner, merchant, amount, currency, category,
	occurred_at, items, sources, correlation_id, status, revision, created_at, updated_at`

// SaveTransaction persists a new transaction and returns its id. An id is
// assigned when the record does not carry one yet.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateTransaction(txn); err != nil {
		return "", err
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Status == "" {
		txn.Status = model.StatusActive
	}
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now
	txn.Revision = 0

	itemsJSON, sourcesJSON, err := encodeLists(txn)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner, merchant, amount, currency, category,
			occurred_at, items, sources, correlation_id, status, revision, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.Owner,
		txn.Merchant,
		txn.Amount.String(),
		txn.Currency,
		txn.Category,
		txn.OccurredAt.UTC(),
		itemsJSON,
		sourcesJSON,
		txn.CorrelationID,
		string(txn.Status),
		txn.Revision,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to insert transaction %s: %v", common.ErrStoreUnavailable, txn.ID, err)
	}

	return txn.ID, nil
}

// GetTransaction retrieves a transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get transaction %s: %v", common.ErrStoreUnavailable, id, err)
	}
	return txn, nil
}

// QueryActiveByOwner returns the owner's active transactions whose occurred_at
// falls within [from, to], most recent first, capped at limit. Callers must
// treat the result as unordered.
func (s *SQLiteStorage) QueryActiveByOwner(ctx context.Context, owner string, from, to time.Time, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner = ? AND status = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`, owner, string(model.StatusActive), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query transactions for owner %s: %v", common.ErrStoreUnavailable, owner, err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan transaction: %v", common.ErrStoreUnavailable, scanErr)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate transactions: %v", common.ErrStoreUnavailable, err)
	}

	return transactions, nil
}

// UpdateTransaction performs a conditional write guarded by the record's
// revision. ErrConcurrentUpdate is returned when the stored record no longer
// matches the expected revision (or is no longer active); callers re-fetch
// and recompute before retrying. The revision is bumped on success.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}

	itemsJSON, sourcesJSON, err := encodeLists(txn)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET merchant = ?, amount = ?, currency = ?, category = ?,
		    occurred_at = ?, items = ?, sources = ?, correlation_id = ?,
		    revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ? AND status = ?
	`,
		txn.Merchant,
		txn.Amount.String(),
		txn.Currency,
		txn.Category,
		txn.OccurredAt.UTC(),
		itemsJSON,
		sourcesJSON,
		txn.CorrelationID,
		now,
		txn.ID,
		txn.Revision,
		string(model.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update transaction %s: %v", common.ErrStoreUnavailable, txn.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read update result: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrConcurrentUpdate, txn.ID)
	}

	txn.Revision++
	txn.UpdatedAt = now
	return nil
}

// DeleteTransaction hard-removes a transaction. Deleting a record that is
// already gone returns ErrNotFound so callers can treat it as a no-op.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete transaction %s: %v", common.ErrStoreUnavailable, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read delete result: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// MarkAbsorbed soft-deletes a transaction for stores that cannot hard-delete.
// An absorbed record is excluded from all candidate queries.
func (s *SQLiteStorage) MarkAbsorbed(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, revision = revision + 1, updated_at = ?
		WHERE id = ?
	`, string(model.StatusAbsorbed), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to absorb transaction %s: %v", common.ErrStoreUnavailable, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read absorb result: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var merchant, category, correlationID sql.NullString
	var itemsJSON, sourcesJSON sql.NullString
	var amountStr, status string

	err := sc.Scan(
		&txn.ID,
		&txn.Owner,
		&merchant,
		&amountStr,
		&txn.Currency,
		&category,
		&txn.OccurredAt,
		&itemsJSON,
		&sourcesJSON,
		&correlationID,
		&status,
		&txn.Revision,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Merchant = merchant.String
	txn.Category = category.String
	txn.CorrelationID = correlationID.String
	txn.Status = model.TransactionStatus(status)
	txn.OccurredAt = txn.OccurredAt.UTC()

	txn.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
	}

	if itemsJSON.Valid && itemsJSON.String != "" {
		if err := json.Unmarshal([]byte(itemsJSON.String), &txn.Items); err != nil {
			return nil, fmt.Errorf("invalid stored items: %w", err)
		}
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &txn.Sources); err != nil {
			return nil, fmt.Errorf("invalid stored sources: %w", err)
		}
	}

	return &txn, nil
}

func encodeLists(txn *model.Transaction) (itemsJSON, sourcesJSON string, err error) {
	if len(txn.Items) > 0 {
		b, marshalErr := json.Marshal(txn.Items)
		if marshalErr != nil {
			return "", "", fmt.Errorf("failed to marshal items: %w", marshalErr)
		}
		itemsJSON = string(b)
	}
	if len(txn.Sources) > 0 {
		b, marshalErr := json.Marshal(txn.Sources)
		if marshalErr != nil {
			return "", "", fmt.Errorf("failed to marshal sources: %w", marshalErr)
		}
		sourcesJSON = string(b)
	}
	return itemsJSON, sourcesJSON, nil
}
