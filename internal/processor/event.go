// Package processor is the client abstraction over the external payment
// processor: webhook signature verification, lifecycle event decoding, and
// outbound payout creation.
package processor

import (
	"encoding/json"
	"fmt"
)

// PaymentIntent is the processor's handle for one attempted inbound
// payment. CustomerID may be empty when the processor never associated a
// customer; the reconciliation engine treats that as an integrity error.
type PaymentIntent struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer"`
	Amount     int64  `json:"amount"`
}

// Event is the closed union of lifecycle notifications. Consumers type
// switch over the variants; an unhandled variant is a compile-visible gap,
// and genuinely unknown wire types decode to Unknown so the webhook can
// answer "no action" for forward compatibility.
type Event interface {
	isEvent()
}

// PaymentProcessing: an asynchronous payment method started processing.
type PaymentProcessing struct {
	Intent PaymentIntent
}

// PaymentSucceeded: funds are confirmed on the processor side.
type PaymentSucceeded struct {
	Intent PaymentIntent
}

// PaymentCanceled: the intent was canceled before completion.
type PaymentCanceled struct {
	Intent PaymentIntent
	Reason string
}

// PaymentFailed: the payment attempt failed terminally.
type PaymentFailed struct {
	Intent PaymentIntent
	Reason string
}

// PayoutCreated: the processor confirmed an outbound payout was created.
type PayoutCreated struct {
	ExternalPayoutID string
	Amount           int64
}

// Unknown carries the raw type of an unrecognized event.
type Unknown struct {
	Type string
}

// EventName returns a stable label for metrics and logs.
func EventName(e Event) string {
	switch e.(type) {
	case PaymentProcessing:
		return "payment_intent.processing"
	case PaymentSucceeded:
		return "payment_intent.succeeded"
	case PaymentCanceled:
		return "payment_intent.canceled"
	case PaymentFailed:
		return "payment_intent.payment_failed"
	case PayoutCreated:
		return "transfer.created"
	default:
		return "unknown"
	}
}

func (PaymentProcessing) isEvent() {}
func (PaymentSucceeded) isEvent()  {}
func (PaymentCanceled) isEvent()   {}
func (PaymentFailed) isEvent()     {}
func (PayoutCreated) isEvent()     {}
func (Unknown) isEvent()           {}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type payoutObject struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

type intentObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Amount             int64  `json:"amount"`
	CancellationReason string `json:"cancellation_reason"`
	LastPaymentError   struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ParseEvent decodes a verified webhook payload into an Event. Call
// VerifySignature first; this function trusts its input.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}

	switch env.Type {
	case "payment_intent.processing", "payment_intent.succeeded",
		"payment_intent.canceled", "payment_intent.payment_failed":
		var obj intentObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("malformed payment intent in %s: %w", env.Type, err)
		}
		intent := PaymentIntent{ID: obj.ID, CustomerID: obj.Customer, Amount: obj.Amount}
		switch env.Type {
		case "payment_intent.processing":
			return PaymentProcessing{Intent: intent}, nil
		case "payment_intent.succeeded":
			return PaymentSucceeded{Intent: intent}, nil
		case "payment_intent.canceled":
			return PaymentCanceled{Intent: intent, Reason: obj.CancellationReason}, nil
		default:
			return PaymentFailed{Intent: intent, Reason: obj.LastPaymentError.Message}, nil
		}

	case "transfer.created":
		var obj payoutObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("malformed transfer in %s: %w", env.Type, err)
		}
		return PayoutCreated{ExternalPayoutID: obj.ID, Amount: obj.Amount}, nil

	default:
		return Unknown{Type: env.Type}, nil
	}
}
