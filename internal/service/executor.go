// Package service holds the two money-movement protocols: the idempotent
// transfer executor for client-initiated requests, and the reconciliation
// engine for processor-initiated lifecycle events. They share only the
// ledger client downstream and never call each other.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/fintova/paycore/internal/domain"
	"github.com/fintova/paycore/internal/idempotency"
	"github.com/fintova/paycore/internal/identity"
	"github.com/fintova/paycore/internal/ledger"
)

// PayoutCreator is the slice of the processor client the executor needs.
type PayoutCreator interface {
	CreatePayout(ctx context.Context, destinationID string, amount int64, metadata map[string]string) (string, error)
}

// Executor runs a money-moving request exactly once per idempotency token.
// The store's atomic create-if-absent is the sole mutual-exclusion point:
// of N concurrent identical requests, one proceeds and the rest observe the
// pending record.
type Executor struct {
	store     idempotency.Store
	ledger    ledger.Client
	directory identity.Directory
	payouts   PayoutCreator
	log       *slog.Logger
}

func NewExecutor(store idempotency.Store, lc ledger.Client, directory identity.Directory, payouts PayoutCreator, log *slog.Logger) *Executor {
	return &Executor{store: store, ledger: lc, directory: directory, payouts: payouts, log: log}
}

// begin resolves the idempotency record for the pair. It returns exactly
// one of: a transaction id to execute under (fresh reservation), a replayed
// success response, or a typed error.
func (e *Executor) begin(ctx context.Context, ownerID, token string) (string, *domain.TransferResponse, error) {
	record, err := e.store.Get(ctx, ownerID, token)
	switch {
	case err == nil:
		switch record.State {
		case domain.TxPending:
			return "", nil, domain.E(domain.CodeInProgress, "The server is already processing this request")
		case domain.TxFailed:
			return "", nil, domain.E(domain.CodeTokenFailed, "This request already failed. Issue a new idempotency token to retry")
		case domain.TxSuccess:
			return "", &domain.TransferResponse{TransactionID: record.TransactionID, Replayed: true}, nil
		}
	case errors.Is(err, idempotency.ErrNotFound):
	default:
		return "", nil, domain.Internal(domain.CodeUnexpected, "idempotency lookup failed", err)
	}

	// Reserve before any side effect. The loser of a concurrent race sees
	// ErrConflict here and must not execute.
	transactionID := uuid.NewString()
	if err := e.store.Create(ctx, ownerID, token, transactionID); err != nil {
		if errors.Is(err, idempotency.ErrConflict) {
			return "", nil, domain.E(domain.CodeInProgress, "The server is already processing this request")
		}
		return "", nil, domain.Internal(domain.CodeUnexpected, "idempotency reservation failed", err)
	}
	return transactionID, nil, nil
}

// fail moves the record to its terminal failed state. A failed transition
// that itself fails is only logged: the record expires on its own and the
// caller already gets the original error.
func (e *Executor) fail(ctx context.Context, ownerID, token string) {
	if err := e.store.SetState(context.WithoutCancel(ctx), ownerID, token, domain.TxFailed); err != nil {
		e.log.Error("failed to mark idempotency record failed", "owner_user_id", ownerID, "error", err)
	}
}

func (e *Executor) succeed(ctx context.Context, ownerID, token string) {
	if err := e.store.SetState(context.WithoutCancel(ctx), ownerID, token, domain.TxSuccess); err != nil {
		e.log.Error("failed to mark idempotency record succeeded", "owner_user_id", ownerID, "error", err)
	}
}

// ambiguous reports whether a downstream error leaves the outcome unknown:
// the call may have landed. The record must then stay pending so the
// caller's retry of the same token resolves the ambiguity.
func ambiguous(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Transfer moves amount minor units from the owner to the user behind
// recipientPhone, at most once per token.
func (e *Executor) Transfer(ctx context.Context, ownerID, token, recipientPhone string, amount int64) (domain.TransferResponse, error) {
	transactionID, replay, err := e.begin(ctx, ownerID, token)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	if replay != nil {
		return *replay, nil
	}

	recipientID, err := e.directory.UserByPhone(ctx, recipientPhone)
	if err != nil {
		e.fail(ctx, ownerID, token)
		if errors.Is(err, identity.ErrUserNotFound) {
			return domain.TransferResponse{}, domain.E(domain.CodeRecipientNotFound, "No user found for this phone number")
		}
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "recipient lookup failed", err)
	}
	if recipientID == ownerID {
		e.fail(ctx, ownerID, token)
		return domain.TransferResponse{}, domain.E(domain.CodeSelfTransfer, "Cannot transfer to yourself")
	}

	if err := e.ledger.Transfer(ctx, ownerID, recipientID, amount); err != nil {
		if ambiguous(err) {
			return domain.TransferResponse{}, domain.E(domain.CodeInProgress, "The transfer outcome is not yet known. Retry with the same token")
		}
		e.fail(ctx, ownerID, token)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return domain.TransferResponse{}, domain.E(domain.CodeNotEnoughFunds, "Insufficient balance")
		}
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "ledger transfer failed", err)
	}

	e.succeed(ctx, ownerID, token)
	return domain.TransferResponse{TransactionID: transactionID}, nil
}

// Payout reserves funds on the ledger and asks the processor to move them
// to the owner's linked destination, at most once per token.
func (e *Executor) Payout(ctx context.Context, ownerID, token string, amount int64) (domain.TransferResponse, error) {
	transactionID, replay, err := e.begin(ctx, ownerID, token)
	if err != nil {
		return domain.TransferResponse{}, err
	}
	if replay != nil {
		return *replay, nil
	}

	destinationID, err := e.directory.PayoutDestination(ctx, ownerID)
	if err != nil {
		e.fail(ctx, ownerID, token)
		if errors.Is(err, identity.ErrNoDestination) {
			return domain.TransferResponse{}, domain.E(domain.CodeNoPayoutDestination, "Complete onboarding before creating a payout")
		}
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "payout destination lookup failed", err)
	}

	payoutRef, err := e.ledger.CreatePendingPayout(ctx, ownerID, destinationID, amount)
	if err != nil {
		if ambiguous(err) {
			return domain.TransferResponse{}, domain.E(domain.CodeInProgress, "The payout outcome is not yet known. Retry with the same token")
		}
		e.fail(ctx, ownerID, token)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return domain.TransferResponse{}, domain.E(domain.CodeNotEnoughFunds, "Insufficient balance")
		}
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "payout reservation failed", err)
	}

	externalPayoutID, err := e.payouts.CreatePayout(ctx, destinationID, amount, map[string]string{
		"payout_ref":     payoutRef,
		"transaction_id": transactionID,
	})
	if err != nil {
		// The reservation holds real funds; release it before failing the
		// token. If the release itself fails the hold needs manual
		// reconciliation, which must be loud.
		if voidErr := e.ledger.VoidPendingPayout(context.WithoutCancel(ctx), payoutRef, amount); voidErr != nil {
			e.log.Error("payout reservation could not be released, manual reconciliation required",
				"payout_ref", payoutRef, "owner_user_id", ownerID, "amount", amount, "error", voidErr)
		}
		e.fail(ctx, ownerID, token)
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "external payout creation failed", err)
	}

	if err := e.ledger.RecordExternalPayout(context.WithoutCancel(ctx), payoutRef, externalPayoutID); err != nil {
		// The payout is in flight and the reservation cannot be voided
		// anymore; the confirmation webhook will not find it either.
		e.log.Error("failed to record external payout id, manual reconciliation required",
			"payout_ref", payoutRef, "external_payout_id", externalPayoutID, "error", err)
		e.fail(ctx, ownerID, token)
		return domain.TransferResponse{}, domain.Internal(domain.CodeUnexpected, "failed to record external payout id", err)
	}

	e.succeed(ctx, ownerID, token)
	return domain.TransferResponse{TransactionID: transactionID}, nil
}
