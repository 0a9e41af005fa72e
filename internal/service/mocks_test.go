package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fintova/paycore/internal/identity"
	"github.com/fintova/paycore/internal/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger records calls and delegates to per-method hooks. A nil hook
// means the call succeeds with zero-value results.
type fakeLedger struct {
	mu    sync.Mutex
	calls map[string]int

	transferFn              func(fromUserID, toUserID string, amount int64) error
	createPendingTransferFn func(paymentIntentID, customerID, userID string, amount int64) (string, error)
	postPendingTransferFn   func(transferRef string, amount int64) error
	voidPendingTransferFn   func(transferRef string, amount int64) error
	createAndPostFn         func(paymentIntentID, customerID, userID string, amount int64) error
	getPendingTransferFn    func(paymentIntentID string) (ledger.PendingTransfer, error)
	createPendingPayoutFn   func(ownerUserID, destinationID string, amount int64) (string, error)
	voidPendingPayoutFn     func(payoutRef string, amount int64) error
	recordExternalPayoutFn  func(payoutRef, externalPayoutID string) error
	postPendingPayoutFn     func(externalPayoutID string, amount int64) error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{calls: make(map[string]int)}
}

func (f *fakeLedger) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeLedger) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeLedger) Transfer(_ context.Context, fromUserID, toUserID string, amount int64) error {
	f.record("Transfer")
	if f.transferFn != nil {
		return f.transferFn(fromUserID, toUserID, amount)
	}
	return nil
}

func (f *fakeLedger) CreatePendingTransfer(_ context.Context, paymentIntentID, customerID, userID string, amount int64) (string, error) {
	f.record("CreatePendingTransfer")
	if f.createPendingTransferFn != nil {
		return f.createPendingTransferFn(paymentIntentID, customerID, userID, amount)
	}
	return "ref-" + paymentIntentID, nil
}

func (f *fakeLedger) PostPendingTransfer(_ context.Context, transferRef string, amount int64) error {
	f.record("PostPendingTransfer")
	if f.postPendingTransferFn != nil {
		return f.postPendingTransferFn(transferRef, amount)
	}
	return nil
}

func (f *fakeLedger) VoidPendingTransfer(_ context.Context, transferRef string, amount int64) error {
	f.record("VoidPendingTransfer")
	if f.voidPendingTransferFn != nil {
		return f.voidPendingTransferFn(transferRef, amount)
	}
	return nil
}

func (f *fakeLedger) CreateAndPostTransfer(_ context.Context, paymentIntentID, customerID, userID string, amount int64) error {
	f.record("CreateAndPostTransfer")
	if f.createAndPostFn != nil {
		return f.createAndPostFn(paymentIntentID, customerID, userID, amount)
	}
	return nil
}

func (f *fakeLedger) GetPendingTransfer(_ context.Context, paymentIntentID string) (ledger.PendingTransfer, error) {
	f.record("GetPendingTransfer")
	if f.getPendingTransferFn != nil {
		return f.getPendingTransferFn(paymentIntentID)
	}
	return ledger.PendingTransfer{Status: ledger.StatusNone}, nil
}

func (f *fakeLedger) CreatePendingPayout(_ context.Context, ownerUserID, destinationID string, amount int64) (string, error) {
	f.record("CreatePendingPayout")
	if f.createPendingPayoutFn != nil {
		return f.createPendingPayoutFn(ownerUserID, destinationID, amount)
	}
	return "payout-ref-1", nil
}

func (f *fakeLedger) VoidPendingPayout(_ context.Context, payoutRef string, amount int64) error {
	f.record("VoidPendingPayout")
	if f.voidPendingPayoutFn != nil {
		return f.voidPendingPayoutFn(payoutRef, amount)
	}
	return nil
}

func (f *fakeLedger) RecordExternalPayout(_ context.Context, payoutRef, externalPayoutID string) error {
	f.record("RecordExternalPayout")
	if f.recordExternalPayoutFn != nil {
		return f.recordExternalPayoutFn(payoutRef, externalPayoutID)
	}
	return nil
}

func (f *fakeLedger) PostPendingPayout(_ context.Context, externalPayoutID string, amount int64) error {
	f.record("PostPendingPayout")
	if f.postPendingPayoutFn != nil {
		return f.postPendingPayoutFn(externalPayoutID, amount)
	}
	return nil
}

var _ ledger.Client = (*fakeLedger)(nil)

// fakeDirectory resolves identities from fixed maps.
type fakeDirectory struct {
	usersByPhone    map[string]string
	usersByCustomer map[string]string
	destinations    map[string]string
}

func (f *fakeDirectory) UserByPhone(_ context.Context, phone string) (string, error) {
	if id, ok := f.usersByPhone[phone]; ok {
		return id, nil
	}
	return "", identity.ErrUserNotFound
}

func (f *fakeDirectory) UserByCustomerID(_ context.Context, customerID string) (string, error) {
	if id, ok := f.usersByCustomer[customerID]; ok {
		return id, nil
	}
	return "", identity.ErrUserNotFound
}

func (f *fakeDirectory) PayoutDestination(_ context.Context, userID string) (string, error) {
	if id, ok := f.destinations[userID]; ok {
		return id, nil
	}
	return "", identity.ErrNoDestination
}

var _ identity.Directory = (*fakeDirectory)(nil)

// fakePayouts is the processor payout client stand-in.
type fakePayouts struct {
	mu       sync.Mutex
	calls    int
	metadata map[string]string
	err      error
}

func (f *fakePayouts) CreatePayout(_ context.Context, destinationID string, amount int64, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.metadata = metadata
	if f.err != nil {
		return "", f.err
	}
	return "po_external_1", nil
}
