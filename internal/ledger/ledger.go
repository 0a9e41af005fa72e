// Package ledger is the RPC client abstraction over the external accounting
// gateway. The gateway owns the double-entry ledger and the pending-transfer
// registry; this package only exposes its single-call primitives and never
// assumes multi-step transactions across them.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds maps the gateway's NOT_ENOUGH_FUNDS detail.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound maps the gateway's NOT_FOUND detail.
	ErrNotFound = errors.New("ledger record not found")
)

// PendingStatus is the state of a pending-transfer registry entry as
// reported by the gateway.
type PendingStatus string

const (
	StatusNone    PendingStatus = "none"
	StatusPending PendingStatus = "pending"
	StatusPosted  PendingStatus = "posted"
	StatusVoided  PendingStatus = "voided"
)

// PendingTransfer is the registry entry keyed by payment-intent id.
// TransferRef is set exactly once, by the processing path, and is immutable
// until the transfer is terminally posted or voided.
type PendingTransfer struct {
	TransferRef string        `json:"transfer_ref"`
	OwnerUserID string        `json:"owner_user_id"`
	Status      PendingStatus `json:"status"`
}

// Client is the capability surface the executor and the reconciliation
// engine consume. Amounts are minor units throughout.
type Client interface {
	// Transfer moves funds between two user accounts in a single posted
	// double-entry transfer.
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) error

	// CreatePendingTransfer opens a two-phase reservation for an inbound
	// payment and registers it under the payment-intent id.
	CreatePendingTransfer(ctx context.Context, paymentIntentID, customerID, userID string, amount int64) (string, error)

	// PostPendingTransfer commits an open reservation.
	PostPendingTransfer(ctx context.Context, transferRef string, amount int64) error

	// VoidPendingTransfer releases an open reservation.
	VoidPendingTransfer(ctx context.Context, transferRef string, amount int64) error

	// CreateAndPostTransfer credits an inbound payment in one step, for
	// synchronous payment methods that never opened a reservation.
	CreateAndPostTransfer(ctx context.Context, paymentIntentID, customerID, userID string, amount int64) error

	// GetPendingTransfer reads the registry entry for a payment-intent id.
	// A missing entry is not an error: it returns StatusNone.
	GetPendingTransfer(ctx context.Context, paymentIntentID string) (PendingTransfer, error)

	// CreatePendingPayout reserves funds for an outbound payout.
	CreatePendingPayout(ctx context.Context, ownerUserID, destinationID string, amount int64) (string, error)

	// VoidPendingPayout releases a payout reservation whose external leg
	// never materialized.
	VoidPendingPayout(ctx context.Context, payoutRef string, amount int64) error

	// RecordExternalPayout attaches the processor's payout id to the
	// reservation so the confirmation webhook can find it.
	RecordExternalPayout(ctx context.Context, payoutRef, externalPayoutID string) error

	// PostPendingPayout commits the payout reservation identified by the
	// processor's payout id.
	PostPendingPayout(ctx context.Context, externalPayoutID string, amount int64) error
}
