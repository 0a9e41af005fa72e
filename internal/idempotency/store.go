// Package idempotency owns the durable, time-limited cache mapping
// (owner user id, idempotency token) to a transaction record. The cache is
// the single arbiter of "has this request already happened": its atomic
// create-if-absent is the only mutual-exclusion point above the ledger.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/fintova/paycore/internal/domain"
)

var (
	// ErrNotFound means no live record exists for the pair.
	ErrNotFound = errors.New("idempotency record not found")
	// ErrConflict means Create lost the race: a live record already exists.
	ErrConflict = errors.New("idempotency record already exists")
)

// RetentionWindow is how long a record stays live. After it passes, a
// repeated token executes fresh; this is part of the public API contract.
const RetentionWindow = 24 * time.Hour

// Store is implemented by every backend. Get never returns expired records,
// Create must be atomic across concurrent callers for the same pair, and
// SetState is a plain overwrite.
type Store interface {
	Get(ctx context.Context, ownerID, token string) (*domain.TransactionRecord, error)
	Create(ctx context.Context, ownerID, token, transactionID string) error
	SetState(ctx context.Context, ownerID, token string, state domain.TxState) error
}
