// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus indicates whether a record is live or has been folded
// into another record.
type TransactionStatus string

// Transaction status constants.
const (
	StatusActive   TransactionStatus = "active"
	StatusAbsorbed TransactionStatus = "absorbed"
)

// SourceKind identifies the input channel a record originated from.
type SourceKind string

// Source kind constants.
const (
	SourceImage SourceKind = "image"
	SourceEmail SourceKind = "email"
	SourceSMS   SourceKind = "sms"
	SourceVoice SourceKind = "voice"
)

// Source records which input channel contributed to a transaction.
type Source struct {
	Kind        SourceKind `json:"kind"`
	ExternalRef string     `json:"externalRef,omitempty"`
}

// LineItem is a single purchased item on a transaction.
type LineItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

// Transaction represents a single financial transaction from any source.
// Amount, currency, and merchant form the identity shadow used for matching;
// a merge only fills them in when missing, it never replaces them.
type Transaction struct {
	OccurredAt    time.Time       `json:"occurredAt"`
	CreatedAt     time.Time       `json:"createdAt,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt,omitempty"`
	ID            string          `json:"id,omitempty"` // empty until persisted
	Owner         string          `json:"owner"`
	Merchant      string          `json:"merchant,omitempty"`
	Currency      string          `json:"currency"`
	Category      string          `json:"category,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Status        TransactionStatus `json:"status,omitempty"`
	Items         []LineItem      `json:"items,omitempty"`
	Sources       []Source        `json:"sources,omitempty"`
	Amount        decimal.Decimal `json:"amount"`

	// Revision is the store's optimistic concurrency guard. It is bumped on
	// every successful update; conditional writes compare against it.
	Revision int64 `json:"-"`
}

// HasTimeOfDay reports whether OccurredAt carries a real clock component.
// Date-only sources normalize to midnight UTC, so a midnight timestamp is
// treated as date granularity.
func (t *Transaction) HasTimeOfDay() bool {
	u := t.OccurredAt.UTC()
	return u.Hour() != 0 || u.Minute() != 0 || u.Second() != 0
}

// HasSource reports whether the transaction already carries the given
// provenance entry. Matching is exact on kind and external reference.
func (t *Transaction) HasSource(s Source) bool {
	for _, existing := range t.Sources {
		if existing.Kind == s.Kind && existing.ExternalRef == s.ExternalRef {
			return true
		}
	}
	return false
}

// HasItem reports whether the transaction carries a line item with the given
// name, compared case-insensitively.
func (t *Transaction) HasItem(name string) bool {
	for _, item := range t.Items {
		if strings.EqualFold(item.Name, name) {
			return true
		}
	}
	return false
}
