package engine

import (
	"context"
	"time"

	"github.com/quiltmoney/quilt/internal/model"
)

// Store defines the record store contract the correlator consumes. No
// multi-document transactional guarantee is assumed; the engine is written
// to be safe without one.
type Store interface {
	SaveTransaction(ctx context.Context, txn *model.Transaction) (string, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	QueryActiveByOwner(ctx context.Context, owner string, from, to time.Time, limit int) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
}

// Oracle defines the judgment service contract. Implementations return one
// verdict per candidate, in candidate order, and never fail: degraded
// service yields no-correlation defaults.
type Oracle interface {
	Judge(ctx context.Context, incoming model.Transaction, candidates []model.Transaction) []model.Verdict
}
