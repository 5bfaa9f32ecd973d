package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quiltmoney/quilt/internal/model"
)

// findCandidates queries the store for active records that could plausibly
// describe the same purchase as the incoming transaction: same owner, amount
// within tolerance, occurred within the applicable time window. Records
// bound into a prior correlation remain eligible as winners; absorbed
// records are excluded by the status filter in the query.
func (c *Correlator) findCandidates(ctx context.Context, txn model.Transaction) ([]model.Transaction, error) {
	// Query at the widest window; the per-pair window narrows below when
	// both sides carry time of day.
	from := txn.OccurredAt.Add(-c.cfg.DateOnlyWindow)
	to := txn.OccurredAt.Add(c.cfg.DateOnlyWindow)

	stored, err := c.store.QueryActiveByOwner(ctx, txn.Owner, from, to, c.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}

	var candidates []model.Transaction
	for _, candidate := range stored {
		if candidate.ID != "" && candidate.ID == txn.ID {
			continue
		}
		if !c.withinTimeWindow(txn, candidate) {
			continue
		}
		if !c.withinAmountTolerance(txn.Amount, candidate.Amount) {
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// withinTimeWindow applies the precise window only when both records carry a
// real clock component; a date-only side on either end widens the window to
// accommodate sources that could not supply time of day. Elapsed time is
// used throughout, never calendar day arithmetic.
func (c *Correlator) withinTimeWindow(a, b model.Transaction) bool {
	window := c.cfg.DateOnlyWindow
	if a.HasTimeOfDay() && b.HasTimeOfDay() {
		window = c.cfg.PreciseWindow
	}

	diff := a.OccurredAt.Sub(b.OccurredAt)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// withinAmountTolerance checks |a-b| <= max(a,b) * tolerance. The tolerance
// scales with the larger amount to absorb rounding and tax differences
// between sources describing the same purchase.
func (c *Correlator) withinAmountTolerance(a, b decimal.Decimal) bool {
	larger := a
	if b.GreaterThan(a) {
		larger = b
	}
	tolerance := larger.Mul(decimal.NewFromFloat(c.cfg.AmountTolerance))
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
