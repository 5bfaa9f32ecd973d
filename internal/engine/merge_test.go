package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltmoney/quilt/internal/model"
)

func TestResolveMergeWinnerFieldsWin(t *testing.T) {
	winner := model.Transaction{
		ID:         "w",
		Owner:      "user-1",
		Merchant:   "Cafe X",
		Amount:     decimal.RequireFromString("250"),
		Currency:   "INR",
		Category:   "dining",
		OccurredAt: time.Date(2025, 1, 24, 14, 30, 0, 0, time.UTC),
	}
	incoming := model.Transaction{
		Owner:      "user-1",
		Merchant:   "CAFE X PVT LTD",
		Amount:     decimal.RequireFromString("252"),
		Currency:   "INR",
		Category:   "coffee",
		OccurredAt: time.Date(2025, 1, 24, 14, 35, 0, 0, time.UTC),
	}

	merged := resolveMerge(winner, incoming)

	assert.Equal(t, "Cafe X", merged.Merchant)
	assert.True(t, merged.Amount.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, "dining", merged.Category)
	assert.True(t, merged.OccurredAt.Equal(winner.OccurredAt))
}

func TestResolveMergeFillsEmptyWinnerFields(t *testing.T) {
	winner := model.Transaction{
		ID:         "w",
		Owner:      "user-1",
		Amount:     decimal.RequireFromString("250"),
		Currency:   "INR",
		OccurredAt: time.Date(2025, 1, 24, 14, 30, 0, 0, time.UTC),
	}
	incoming := model.Transaction{
		Owner:    "user-1",
		Merchant: "Cafe X",
		Category: "dining",
	}

	merged := resolveMerge(winner, incoming)

	assert.Equal(t, "Cafe X", merged.Merchant)
	assert.Equal(t, "dining", merged.Category)
}

func TestResolveMergePrefersTimeOfDayPrecision(t *testing.T) {
	dateOnly := time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC)
	precise := time.Date(2025, 1, 24, 14, 35, 0, 0, time.UTC)

	winner := model.Transaction{ID: "w", OccurredAt: dateOnly}
	incoming := model.Transaction{OccurredAt: precise}

	merged := resolveMerge(winner, incoming)
	assert.True(t, merged.OccurredAt.Equal(precise), "precise timestamp replaces date-only")

	// The other direction keeps the winner's precise timestamp
	merged = resolveMerge(model.Transaction{ID: "w", OccurredAt: precise}, model.Transaction{OccurredAt: dateOnly})
	assert.True(t, merged.OccurredAt.Equal(precise))
}

func TestResolveMergeUnionsItemsCaseInsensitively(t *testing.T) {
	winner := model.Transaction{
		ID: "w",
		Items: []model.LineItem{
			{Name: "Latte", Price: decimal.RequireFromString("250")},
		},
	}
	incoming := model.Transaction{
		Items: []model.LineItem{
			{Name: "latte", Price: decimal.RequireFromString("252")},
			{Name: "Croissant", Price: decimal.RequireFromString("120")},
		},
	}

	merged := resolveMerge(winner, incoming)

	require.Len(t, merged.Items, 2)
	assert.Equal(t, "Latte", merged.Items[0].Name, "winner's spelling kept")
	assert.Equal(t, "Croissant", merged.Items[1].Name)
}

func TestResolveMergeUnionsSources(t *testing.T) {
	winner := model.Transaction{
		ID: "w",
		Sources: []model.Source{
			{Kind: model.SourceSMS, ExternalRef: "sms-1"},
		},
	}
	incoming := model.Transaction{
		Sources: []model.Source{
			{Kind: model.SourceSMS, ExternalRef: "sms-1"},
			{Kind: model.SourceEmail, ExternalRef: "em-1"},
		},
	}

	merged := resolveMerge(winner, incoming)

	require.Len(t, merged.Sources, 2)
	assert.Equal(t, model.SourceSMS, merged.Sources[0].Kind)
	assert.Equal(t, model.SourceEmail, merged.Sources[1].Kind)
}

func TestResolveMergeIsIdempotent(t *testing.T) {
	winner := model.Transaction{
		ID:       "w",
		Merchant: "Cafe X",
		Items: []model.LineItem{
			{Name: "Latte", Price: decimal.RequireFromString("250")},
		},
		Sources: []model.Source{
			{Kind: model.SourceSMS, ExternalRef: "sms-1"},
		},
	}
	incoming := model.Transaction{
		Merchant: "Cafe X Ltd",
		Items: []model.LineItem{
			{Name: "Croissant", Price: decimal.RequireFromString("120")},
		},
		Sources: []model.Source{
			{Kind: model.SourceEmail, ExternalRef: "em-1"},
		},
	}

	once := resolveMerge(winner, incoming)
	twice := resolveMerge(once, incoming)

	assert.Equal(t, once, twice, "re-applying the same merge changes nothing")
	assert.Len(t, twice.Items, 2)
	assert.Len(t, twice.Sources, 2)
}

func TestResolveMergeDoesNotAliasWinnerSlices(t *testing.T) {
	winner := model.Transaction{
		ID: "w",
		Sources: []model.Source{
			{Kind: model.SourceSMS, ExternalRef: "sms-1"},
		},
	}
	incoming := model.Transaction{
		Sources: []model.Source{
			{Kind: model.SourceEmail, ExternalRef: "em-1"},
		},
	}

	merged := resolveMerge(winner, incoming)
	merged.Sources[0].ExternalRef = "mutated"

	assert.Equal(t, "sms-1", winner.Sources[0].ExternalRef, "winner's backing array untouched")
}

func TestAbsorbedRef(t *testing.T) {
	tests := []struct {
		name string
		txn  model.Transaction
		want string
	}{
		{
			name: "persisted id",
			txn:  model.Transaction{ID: "txn-9"},
			want: "txn-9",
		},
		{
			name: "in-flight with provenance",
			txn: model.Transaction{Sources: []model.Source{
				{Kind: model.SourceEmail, ExternalRef: "em-1"},
			}},
			want: "email:em-1",
		},
		{
			name: "in-flight without external ref",
			txn: model.Transaction{Sources: []model.Source{
				{Kind: model.SourceVoice},
			}},
			want: "voice",
		},
		{
			name: "no identity at all",
			txn:  model.Transaction{},
			want: "in-flight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, absorbedRef(tt.txn))
		})
	}
}
