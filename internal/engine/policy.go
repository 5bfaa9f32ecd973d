package engine

import "github.com/quiltmoney/quilt/internal/model"

// Decision pairs the winning candidate with the verdict that selected it.
type Decision struct {
	Winner  model.Transaction
	Verdict model.Verdict
}

// decide selects the best actionable verdict: highest confidence among
// correlated verdicts at or above the threshold. Ties at the maximum
// confidence prefer the stronger classification, then the most recently
// updated candidate record. Returns nil when nothing is actionable.
func decide(verdicts []model.Verdict, candidates []model.Transaction, threshold int) *Decision {
	byID := make(map[string]model.Transaction, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}

	var best *Decision
	for _, verdict := range verdicts {
		if !verdict.Correlated {
			continue
		}
		candidate, ok := byID[verdict.CandidateID]
		if !ok {
			continue
		}

		if best == nil || beats(verdict, candidate, best.Verdict, best.Winner) {
			best = &Decision{Winner: candidate, Verdict: verdict}
		}
	}

	if best == nil || best.Verdict.Confidence < threshold {
		return nil
	}
	return best
}

// beats reports whether (v, c) outranks the current best (bv, bc).
func beats(v model.Verdict, c model.Transaction, bv model.Verdict, bc model.Transaction) bool {
	if v.Confidence != bv.Confidence {
		return v.Confidence > bv.Confidence
	}
	if v.Classification.Strength() != bv.Classification.Strength() {
		return v.Classification.Strength() > bv.Classification.Strength()
	}
	// Freshest data is more likely reconciled correctly
	return c.UpdatedAt.After(bc.UpdatedAt)
}
