package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

// errWinnerGone signals that the winner record vanished or was absorbed
// between judgment and commit; the caller falls back to standalone
// persistence of the incoming transaction.
var errWinnerGone = errors.New("winner no longer active")

// merge folds the incoming transaction into the winner record and removes
// the absorbed duplicate. The commit is serialized per winner id; the winner
// is re-fetched under the lock and field resolution recomputed against its
// fresh state, so concurrent merges targeting the same winner cannot corrupt
// the item/source unions. Returns the surviving transaction id.
func (c *Correlator) merge(ctx context.Context, winner, incoming model.Transaction, verdict model.Verdict) (string, error) {
	if winner.Owner != incoming.Owner {
		return "", fmt.Errorf("%w: winner %s owned by %s, incoming owned by %s",
			common.ErrOwnerMismatch, winner.ID, winner.Owner, incoming.Owner)
	}

	correlationID := uuid.NewString()

	unlock := c.locks.lock(winner.ID)
	defer unlock()

	// The merge is cancelable up to the commit; after the winner update it
	// is final.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var merged *model.Transaction
	for attempt := 0; ; attempt++ {
		fresh, err := c.store.GetTransaction(ctx, winner.ID)
		if errors.Is(err, common.ErrNotFound) {
			return "", errWinnerGone
		}
		if err != nil {
			return "", fmt.Errorf("failed to re-fetch winner %s: %w", winner.ID, err)
		}
		if fresh.Status != model.StatusActive {
			return "", errWinnerGone
		}

		resolved := resolveMerge(*fresh, incoming)
		resolved.CorrelationID = correlationID

		err = c.store.UpdateTransaction(ctx, &resolved)
		if err == nil {
			merged = &resolved
			break
		}
		if errors.Is(err, common.ErrConcurrentUpdate) && attempt < c.cfg.CommitRetries {
			c.logger.Debug("winner changed during commit, recomputing merge",
				"winner_id", winner.ID,
				"attempt", attempt+1)
			continue
		}
		// Winner update failed: the merge did not happen and is safe to
		// retry from scratch.
		return "", fmt.Errorf("winner update failed for %s: %w", winner.ID, err)
	}

	// The merge is committed from here on. A failed duplicate delete leaves
	// merged data plus a stale duplicate, which a retried merge treats as a
	// no-op; the delete is retried independently without re-running field
	// resolution.
	if incoming.ID != "" && incoming.ID != merged.ID {
		err := common.WithRetry(ctx, func() error {
			deleteErr := c.store.DeleteTransaction(ctx, incoming.ID)
			if errors.Is(deleteErr, common.ErrNotFound) {
				return nil
			}
			if deleteErr != nil {
				return &common.RetryableError{Err: deleteErr, Retryable: true}
			}
			return nil
		}, c.retryOpts)
		if err != nil {
			c.logger.Error("failed to remove absorbed duplicate; merge is committed",
				"winner_id", merged.ID,
				"absorbed_id", incoming.ID,
				"error", err)
		}
	}

	// Ledger writes are a diagnostic side channel: failure never rolls back
	// or blocks a committed merge.
	entry := model.LedgerEntry{
		CorrelationID:  correlationID,
		MergedInto:     merged.ID,
		Absorbed:       absorbedRef(incoming),
		Confidence:     verdict.Confidence,
		Classification: verdict.Classification,
	}
	if err := c.store.AppendLedgerEntry(ctx, &entry); err != nil {
		c.logger.Warn("ledger append failed for committed merge",
			"winner_id", merged.ID,
			"error", err)
	}

	c.logger.Info("transactions merged",
		"winner_id", merged.ID,
		"absorbed", entry.Absorbed,
		"confidence", verdict.Confidence,
		"classification", verdict.Classification)

	return merged.ID, nil
}

// resolveMerge computes the merged field set. Pure: the winner's value wins
// unless empty, item and source unions are set-based so retries cannot
// double-append, and the timestamp prefers time-of-day precision.
func resolveMerge(winner, incoming model.Transaction) model.Transaction {
	merged := winner

	if merged.Merchant == "" {
		merged.Merchant = incoming.Merchant
	}
	if merged.Amount.IsZero() {
		merged.Amount = incoming.Amount
	}
	if merged.Currency == "" {
		merged.Currency = incoming.Currency
	}
	if merged.Category == "" {
		merged.Category = incoming.Category
	}

	if !winner.HasTimeOfDay() && incoming.HasTimeOfDay() {
		merged.OccurredAt = incoming.OccurredAt
	}

	merged.Items = append([]model.LineItem(nil), winner.Items...)
	for _, item := range incoming.Items {
		if !merged.HasItem(item.Name) {
			merged.Items = append(merged.Items, item)
		}
	}

	merged.Sources = append([]model.Source(nil), winner.Sources...)
	for _, src := range incoming.Sources {
		if !merged.HasSource(src) {
			merged.Sources = append(merged.Sources, src)
		}
	}

	return merged
}

// absorbedRef names the absorbed side in the ledger. An in-flight record
// without a persisted id is identified by its provenance instead.
func absorbedRef(incoming model.Transaction) string {
	if incoming.ID != "" {
		return incoming.ID
	}
	if len(incoming.Sources) > 0 {
		src := incoming.Sources[0]
		if src.ExternalRef != "" {
			return fmt.Sprintf("%s:%s", src.Kind, src.ExternalRef)
		}
		return string(src.Kind)
	}
	return "in-flight"
}
