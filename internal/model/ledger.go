package model

import "time"

// LedgerEntry records one committed merge for traceability. Entries are
// append-only and never updated in place.
type LedgerEntry struct {
	CreatedAt      time.Time      `json:"createdAt"`
	CorrelationID  string         `json:"correlationId"`
	MergedInto     string         `json:"mergedInto"`
	Absorbed       string         `json:"absorbed"`
	Classification Classification `json:"classification"`
	ID             int64          `json:"id"`
	Confidence     int            `json:"confidence"`
}

// OutcomeKind says whether processing created a new record or merged into an
// existing one.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeMerged  OutcomeKind = "merged"
)

// Outcome is the per-transaction result reported to the caller so downstream
// consumers (notifiers, wallet pass creators) can update user-facing
// artifacts.
type Outcome struct {
	Kind           OutcomeKind    `json:"kind"`
	TransactionID  string         `json:"transactionId"`
	Classification Classification `json:"classification,omitempty"`
	Confidence     int            `json:"confidence,omitempty"`
}
