// Package engine implements the correlation and deduplication engine: it
// recognizes when independently-created transaction records describe the
// same real-world purchase and merges them into a single canonical record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

// Config holds the engine's tunable policy parameters. The defaults preserve
// observed behavior; change them only with product guidance.
type Config struct {
	// ConfidenceThreshold is the minimum actionable verdict confidence.
	ConfidenceThreshold int
	// AmountTolerance is the fraction of the larger amount two records may
	// differ by and still match.
	AmountTolerance float64
	// PreciseWindow applies when both records carry time of day.
	PreciseWindow time.Duration
	// DateOnlyWindow applies when either record has date granularity only.
	DateOnlyWindow time.Duration
	// CandidateLimit caps the store query as a performance safeguard.
	CandidateLimit int
	// CommitRetries bounds re-fetch/re-resolve attempts on concurrent
	// winner updates.
	CommitRetries int
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 70
	}
	if c.AmountTolerance == 0 {
		c.AmountTolerance = 0.05
	}
	if c.PreciseWindow == 0 {
		c.PreciseWindow = time.Hour
	}
	if c.DateOnlyWindow == 0 {
		c.DateOnlyWindow = 24 * time.Hour
	}
	if c.CandidateLimit == 0 {
		c.CandidateLimit = 50
	}
	if c.CommitRetries == 0 {
		c.CommitRetries = 3
	}
	return c
}

// Correlator is the engine's entry point, invoked once per arriving
// transaction. Candidate search and judgment are read-only and run freely in
// parallel across incoming transactions; merge commits serialize per winner.
type Correlator struct {
	store     Store
	oracle    Oracle
	logger    *slog.Logger
	locks     *keyedMutex
	cfg       Config
	retryOpts common.RetryOptions
}

// New creates a Correlator. Dependencies are passed explicitly so tests can
// substitute store and oracle doubles.
func New(store Store, oracle Oracle, cfg Config, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		store:  store,
		oracle: oracle,
		logger: logger,
		locks:  newKeyedMutex(),
		cfg:    cfg.withDefaults(),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Process correlates one incoming transaction against the owner's existing
// records. It returns a created outcome (record persisted standalone) or a
// merged outcome (record folded into an existing winner). Oracle failures
// are invisible here: they degrade to no correlation. Store read failures
// abort the attempt so the caller can decide whether to retry or persist
// standalone and correlate later.
func (c *Correlator) Process(ctx context.Context, txn model.Transaction) (model.Outcome, error) {
	candidates, err := c.findCandidates(ctx, txn)
	if err != nil {
		return model.Outcome{}, err
	}

	if len(candidates) == 0 {
		return c.persistStandalone(ctx, txn)
	}

	verdicts := c.oracle.Judge(ctx, txn, candidates)

	decision := decide(verdicts, candidates, c.cfg.ConfidenceThreshold)
	if decision == nil {
		c.logger.Debug("no actionable correlation",
			"owner", txn.Owner,
			"candidate_count", len(candidates))
		return c.persistStandalone(ctx, txn)
	}

	switch decision.Verdict.Action {
	case model.ActionMerge:
		winnerID, mergeErr := c.merge(ctx, decision.Winner, txn, decision.Verdict)
		if errors.Is(mergeErr, errWinnerGone) {
			c.logger.Warn("winner vanished before commit, persisting standalone",
				"owner", txn.Owner,
				"winner_id", decision.Winner.ID)
			return c.persistStandalone(ctx, txn)
		}
		if mergeErr != nil {
			return model.Outcome{}, mergeErr
		}
		return model.Outcome{
			Kind:           model.OutcomeMerged,
			TransactionID:  winnerID,
			Confidence:     decision.Verdict.Confidence,
			Classification: decision.Verdict.Classification,
		}, nil

	case model.ActionFlagForReview:
		c.logger.Warn("correlation flagged for review, keeping records separate",
			"owner", txn.Owner,
			"candidate_id", decision.Winner.ID,
			"confidence", decision.Verdict.Confidence,
			"reason", decision.Verdict.Reason)
		return c.persistStandalone(ctx, txn)

	default:
		return c.persistStandalone(ctx, txn)
	}
}

// persistStandalone saves the incoming transaction as a new record. A record
// that already carries a persisted id (retroactive correlation pass) is left
// untouched.
func (c *Correlator) persistStandalone(ctx context.Context, txn model.Transaction) (model.Outcome, error) {
	if txn.ID != "" {
		return model.Outcome{Kind: model.OutcomeCreated, TransactionID: txn.ID}, nil
	}

	id, err := c.store.SaveTransaction(ctx, &txn)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to persist transaction: %w", err)
	}

	c.logger.Info("transaction created",
		"transaction_id", id,
		"owner", txn.Owner,
		"merchant", txn.Merchant)

	return model.Outcome{Kind: model.OutcomeCreated, TransactionID: id}, nil
}
