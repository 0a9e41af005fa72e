package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsError_Unwraps(t *testing.T) {
	base := Internal(CodeUnexpected, "ledger call failed", errors.New("dial timeout"))
	wrapped := fmt.Errorf("transfer: %w", base)

	derr, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeUnexpected, derr.Code)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorVisibility(t *testing.T) {
	assert.True(t, E(CodeSelfTransfer, "Cannot transfer to yourself").ShowUser)
	assert.False(t, Internal(CodeIntegrity, "state mismatch", nil).ShowUser)
}

func TestErrorString(t *testing.T) {
	err := Internal(CodeUnexpected, "ledger call failed", errors.New("dial timeout"))
	assert.Equal(t, "UNEXPECTED: ledger call failed: dial timeout", err.Error())
	assert.Equal(t, "SELF_TRANSFER: no", E(CodeSelfTransfer, "no").Error())
}

func TestTxState(t *testing.T) {
	assert.False(t, TxPending.Terminal())
	assert.True(t, TxFailed.Terminal())
	assert.True(t, TxSuccess.Terminal())

	assert.True(t, TxPending.Valid())
	assert.False(t, TxState("corrupted").Valid())
}
