package domain

import (
	"errors"
	"fmt"
)

// Code identifies a failure class to the HTTP boundary. Codes are part of
// the API contract; their values are stable, their meanings distinct.
type Code string

const (
	// CodeInProgress: a concurrent attempt with the same token holds the
	// pending record, or a prior attempt is still unresolved downstream.
	// The caller retries the same token.
	CodeInProgress Code = "REQUEST_IN_PROGRESS"

	// CodeTokenFailed: the token's prior attempt failed terminally. The
	// failure may be partial, so this layer never re-executes it; the
	// caller must issue a fresh token.
	CodeTokenFailed Code = "TOKEN_ALREADY_FAILED"

	CodeRecipientNotFound   Code = "RECIPIENT_NOT_FOUND"
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeSelfTransfer        Code = "SELF_TRANSFER"
	CodeNotEnoughFunds      Code = "NOT_ENOUGH_FUNDS"
	CodeNoPayoutDestination Code = "NO_PAYOUT_DESTINATION"

	// CodeIntegrity: an external event contradicts recorded state, e.g. a
	// cancellation for a payment intent with no reservation. Reported,
	// never guessed at.
	CodeIntegrity Code = "INTEGRITY_ERROR"

	CodeUnexpected Code = "UNEXPECTED"
)

// Error is the typed failure returned across the executor and
// reconciliation boundaries. ShowUser separates messages that are safe to
// display from internal detail that must be suppressed.
type Error struct {
	Code     Code
	Message  string
	ShowUser bool
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a user-visible error.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message, ShowUser: true}
}

// Internal builds an error whose detail is suppressed from users.
func Internal(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// AsError extracts a *Error from err, unwrapping as needed.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
