package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltmoney/quilt/internal/model"
)

func policyOnlyCorrelator() *Correlator {
	return New(nil, nil, Config{}, nil)
}

func TestWithinAmountTolerance(t *testing.T) {
	c := policyOnlyCorrelator()

	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal amounts", a: "1000", b: "1000", want: true},
		{name: "within five percent", a: "1000", b: "1049", want: true},
		{name: "at five percent of larger", a: "1000", b: "1050", want: true},
		{name: "beyond five percent", a: "1000", b: "1060", want: false},
		{name: "tolerance scales with larger side", a: "95", b: "100", want: true},
		{name: "small amounts beyond tolerance", a: "94", b: "100", want: false},
		{name: "order independent", a: "1049", b: "1000", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decimal.RequireFromString(tt.a)
			b := decimal.RequireFromString(tt.b)
			assert.Equal(t, tt.want, c.withinAmountTolerance(a, b))
		})
	}
}

func TestWithinTimeWindow(t *testing.T) {
	c := policyOnlyCorrelator()

	precise := time.Date(2025, 1, 24, 14, 30, 0, 0, time.UTC)
	dateOnly := time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		want bool
	}{
		{name: "both precise 45m apart", a: precise, b: precise.Add(45 * time.Minute), want: true},
		{name: "both precise exactly 1h apart", a: precise, b: precise.Add(time.Hour), want: true},
		{name: "both precise 90m apart", a: precise, b: precise.Add(90 * time.Minute), want: false},
		{name: "one date-only 20h apart", a: dateOnly, b: precise.Add(6 * time.Hour), want: true},
		{name: "one date-only 25h apart", a: dateOnly, b: dateOnly.Add(25*time.Hour + time.Minute), want: false},
		{name: "both date-only consecutive days", a: dateOnly, b: dateOnly.Add(24 * time.Hour), want: true},
		{name: "both date-only two days apart", a: dateOnly, b: dateOnly.Add(48 * time.Hour), want: false},
		{
			// Elapsed time, not calendar day arithmetic: these are 30
			// minutes apart across a month boundary.
			name: "precise pair across month boundary",
			a:    time.Date(2025, 1, 31, 23, 50, 0, 0, time.UTC),
			b:    time.Date(2025, 2, 1, 0, 20, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "date-only pair across month boundary",
			a:    time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txnA := model.Transaction{OccurredAt: tt.a}
			txnB := model.Transaction{OccurredAt: tt.b}
			assert.Equal(t, tt.want, c.withinTimeWindow(txnA, txnB))
			assert.Equal(t, tt.want, c.withinTimeWindow(txnB, txnA), "window is symmetric")
		})
	}
}

func TestFindCandidates(t *testing.T) {
	store := newTestStore(t)
	c := New(store, NewMockOracle(), Config{}, nil)
	ctx := context.Background()

	base := time.Date(2025, 1, 24, 14, 30, 0, 0, time.UTC)

	match := seedTransaction(t, store, "user-1", "250", base.Add(-30*time.Minute))
	tooFar := seedTransaction(t, store, "user-1", "250", base.Add(-30*time.Hour))
	wrongAmount := seedTransaction(t, store, "user-1", "400", base)
	otherOwner := seedTransaction(t, store, "user-2", "250", base)

	incoming := model.Transaction{
		Owner:      "user-1",
		Amount:     decimal.RequireFromString("252"),
		Currency:   "INR",
		OccurredAt: base,
	}

	candidates, err := c.findCandidates(ctx, incoming)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, match.ID, candidates[0].ID)
	for _, candidate := range candidates {
		assert.NotEqual(t, tooFar.ID, candidate.ID)
		assert.NotEqual(t, wrongAmount.ID, candidate.ID)
		assert.NotEqual(t, otherOwner.ID, candidate.ID)
	}
}

func TestFindCandidatesExcludesSelf(t *testing.T) {
	store := newTestStore(t)
	c := New(store, NewMockOracle(), Config{}, nil)
	ctx := context.Background()

	base := time.Date(2025, 1, 24, 14, 30, 0, 0, time.UTC)
	existing := seedTransaction(t, store, "user-1", "250", base)

	// Retroactive pass: the incoming record is already persisted.
	candidates, err := c.findCandidates(ctx, *existing)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidatesDateOnlyWidensWindow(t *testing.T) {
	store := newTestStore(t)
	c := New(store, NewMockOracle(), Config{}, nil)
	ctx := context.Background()

	precise := time.Date(2025, 1, 24, 18, 0, 0, 0, time.UTC)
	stored := seedTransaction(t, store, "user-1", "250", precise)

	// A date-only incoming record 18 hours away still matches; a precise
	// one at the same distance would not.
	dateOnly := model.Transaction{
		Owner:      "user-1",
		Amount:     decimal.RequireFromString("250"),
		Currency:   "INR",
		OccurredAt: time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC),
	}

	candidates, err := c.findCandidates(ctx, dateOnly)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, stored.ID, candidates[0].ID)

	preciseIncoming := dateOnly
	preciseIncoming.OccurredAt = precise.Add(-18 * time.Hour).Add(time.Minute)

	candidates, err = c.findCandidates(ctx, preciseIncoming)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
