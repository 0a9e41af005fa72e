package domain

import "time"

// TxState is the lifecycle state of an idempotency transaction record.
// A record is created pending, then moves exactly once to failed or success.
type TxState string

const (
	TxPending TxState = "pending"
	TxFailed  TxState = "failed"
	TxSuccess TxState = "success"
)

// Terminal reports whether the state admits no further transitions.
func (s TxState) Terminal() bool {
	return s == TxFailed || s == TxSuccess
}

// Valid reports whether s is one of the three known states. Records read
// back from storage are rejected if a deploy skew produced anything else.
func (s TxState) Valid() bool {
	switch s {
	case TxPending, TxFailed, TxSuccess:
		return true
	}
	return false
}

// TransactionRecord is the value cached per (owner, idempotency token) pair.
// The pair is the single source of truth for whether a client-issued
// operation has already been attempted.
type TransactionRecord struct {
	OwnerUserID   string    `json:"owner_user_id"`
	Token         string    `json:"token"`
	TransactionID string    `json:"transaction_id"`
	State         TxState   `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransferRequest is the payload for a peer transfer.
type TransferRequest struct {
	RecipientPhone string `json:"recipient_phone"`
	Amount         int64  `json:"amount"`
}

// PayoutRequest is the payload for an outbound payout.
type PayoutRequest struct {
	Amount int64 `json:"amount"`
}

// TransferResponse is the canonical success body for transfers and payouts.
type TransferResponse struct {
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed,omitempty"`
}
