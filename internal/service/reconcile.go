package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fintova/paycore/internal/domain"
	"github.com/fintova/paycore/internal/identity"
	"github.com/fintova/paycore/internal/ledger"
	"github.com/fintova/paycore/internal/processor"
)

// Outcome is the reconciliation result reported to the webhook boundary.
type Outcome string

const (
	// OutcomeApplied: the event advanced ledger state.
	OutcomeApplied Outcome = "ok"
	// OutcomeReplayed: the event was already applied; nothing changed.
	OutcomeReplayed Outcome = "replayed"
	// OutcomeNoAction: the event type is not handled here.
	OutcomeNoAction Outcome = "no action taken"
)

// Engine consumes processor lifecycle events and drives the ledger's
// two-phase transfer protocol. Every handler first reads the pending
// transfer registry back by payment-intent id, so each is idempotent
// against redelivery without trusting the processor's delivery guarantees.
type Engine struct {
	ledger    ledger.Client
	directory identity.Directory
	log       *slog.Logger
}

func NewEngine(lc ledger.Client, directory identity.Directory, log *slog.Logger) *Engine {
	return &Engine{ledger: lc, directory: directory, log: log}
}

// HandleEvent dispatches one verified lifecycle event. Errors never abort
// processing of unrelated events; the boundary reports them per delivery.
func (e *Engine) HandleEvent(ctx context.Context, event processor.Event) (Outcome, error) {
	switch ev := event.(type) {
	case processor.PaymentProcessing:
		return e.handleProcessing(ctx, ev.Intent)
	case processor.PaymentSucceeded:
		return e.handleSucceeded(ctx, ev.Intent)
	case processor.PaymentCanceled:
		e.log.Warn("payment canceled", "payment_intent_id", ev.Intent.ID, "reason", ev.Reason)
		return e.handleReversal(ctx, ev.Intent)
	case processor.PaymentFailed:
		e.log.Warn("payment failed", "payment_intent_id", ev.Intent.ID, "reason", ev.Reason)
		return e.handleReversal(ctx, ev.Intent)
	case processor.PayoutCreated:
		return e.handlePayoutCreated(ctx, ev)
	case processor.Unknown:
		e.log.Info("ignoring unrecognized event type", "type", ev.Type)
		return OutcomeNoAction, nil
	default:
		return OutcomeNoAction, nil
	}
}

// resolveOwner maps the processor customer back to a user. A missing
// association is an integrity error: no ledger mutation may be attempted.
func (e *Engine) resolveOwner(ctx context.Context, intent processor.PaymentIntent) (string, error) {
	if intent.CustomerID == "" {
		return "", domain.Internal(domain.CodeIntegrity, "payment intent carries no customer", nil)
	}
	userID, err := e.directory.UserByCustomerID(ctx, intent.CustomerID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return "", domain.Internal(domain.CodeIntegrity, "no user for processor customer "+intent.CustomerID, nil)
		}
		return "", domain.Internal(domain.CodeUnexpected, "owner lookup failed", err)
	}
	return userID, nil
}

func (e *Engine) handleProcessing(ctx context.Context, intent processor.PaymentIntent) (Outcome, error) {
	pending, err := e.ledger.GetPendingTransfer(ctx, intent.ID)
	if err != nil {
		return "", domain.Internal(domain.CodeUnexpected, "pending transfer lookup failed", err)
	}
	if pending.Status != ledger.StatusNone {
		// The reservation (or its terminal resolution) already exists;
		// this delivery is a duplicate.
		return OutcomeReplayed, nil
	}

	userID, err := e.resolveOwner(ctx, intent)
	if err != nil {
		return "", err
	}

	ref, err := e.ledger.CreatePendingTransfer(ctx, intent.ID, intent.CustomerID, userID, intent.Amount)
	if err != nil {
		return "", domain.Internal(domain.CodeUnexpected, "failed to create pending transfer", err)
	}
	e.log.Info("opened pending transfer", "payment_intent_id", intent.ID, "transfer_ref", ref)
	return OutcomeApplied, nil
}

func (e *Engine) handleSucceeded(ctx context.Context, intent processor.PaymentIntent) (Outcome, error) {
	pending, err := e.ledger.GetPendingTransfer(ctx, intent.ID)
	if err != nil {
		return "", domain.Internal(domain.CodeUnexpected, "pending transfer lookup failed", err)
	}

	switch pending.Status {
	case ledger.StatusPosted:
		// Redelivered success after the post landed.
		return OutcomeReplayed, nil

	case ledger.StatusVoided:
		return "", domain.Internal(domain.CodeIntegrity, "success event for a voided payment intent "+intent.ID, nil)

	case ledger.StatusPending:
		if err := e.ledger.PostPendingTransfer(ctx, pending.TransferRef, intent.Amount); err != nil {
			return "", domain.Internal(domain.CodeUnexpected, "failed to post pending transfer", err)
		}
		return OutcomeApplied, nil

	case ledger.StatusNone:
		// Synchronous payment method: no processing event ever opened a
		// reservation, so credit in a single create-and-post call.
		userID, err := e.resolveOwner(ctx, intent)
		if err != nil {
			return "", err
		}
		if err := e.ledger.CreateAndPostTransfer(ctx, intent.ID, intent.CustomerID, userID, intent.Amount); err != nil {
			return "", domain.Internal(domain.CodeUnexpected, "failed to create and post transfer", err)
		}
		return OutcomeApplied, nil

	default:
		// A status this build does not know about must not be mistaken
		// for "never reserved": crediting here could double-pay.
		return "", domain.Internal(domain.CodeIntegrity,
			"unknown pending transfer status "+string(pending.Status)+" for payment intent "+intent.ID, nil)
	}
}

func (e *Engine) handleReversal(ctx context.Context, intent processor.PaymentIntent) (Outcome, error) {
	pending, err := e.ledger.GetPendingTransfer(ctx, intent.ID)
	if err != nil {
		return "", domain.Internal(domain.CodeUnexpected, "pending transfer lookup failed", err)
	}

	switch pending.Status {
	case ledger.StatusNone:
		// An orphaned cancellation means a processing event went missing;
		// that is investigated, never swallowed.
		return "", domain.Internal(domain.CodeIntegrity, "nothing to void for payment intent "+intent.ID, nil)

	case ledger.StatusVoided:
		return OutcomeReplayed, nil

	case ledger.StatusPosted:
		return "", domain.Internal(domain.CodeIntegrity, "cancellation for already-posted payment intent "+intent.ID, nil)

	case ledger.StatusPending:
		if err := e.ledger.VoidPendingTransfer(ctx, pending.TransferRef, intent.Amount); err != nil {
			return "", domain.Internal(domain.CodeUnexpected, "failed to void pending transfer", err)
		}
		return OutcomeApplied, nil

	default:
		return "", domain.Internal(domain.CodeIntegrity,
			"unknown pending transfer status "+string(pending.Status)+" for payment intent "+intent.ID, nil)
	}
}

func (e *Engine) handlePayoutCreated(ctx context.Context, ev processor.PayoutCreated) (Outcome, error) {
	if err := e.ledger.PostPendingPayout(ctx, ev.ExternalPayoutID, ev.Amount); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return "", domain.Internal(domain.CodeIntegrity, "no payout reservation for external payout "+ev.ExternalPayoutID, nil)
		}
		return "", domain.Internal(domain.CodeUnexpected, "failed to post pending payout", err)
	}
	return OutcomeApplied, nil
}
