package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Unix(1716400000, 0)
	header := Sign(payload, testSecret, now)

	err := verifySignatureAt(payload, header, testSecret, now)
	assert.NoError(t, err)
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":100}`)
	now := time.Unix(1716400000, 0)
	header := Sign(payload, testSecret, now)

	err := verifySignatureAt([]byte(`{"amount":100000}`), header, testSecret, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1716400000, 0)
	header := Sign(payload, "whsec_other", now)

	err := verifySignatureAt(payload, header, testSecret, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Unix(1716400000, 0)
	header := Sign(payload, testSecret, signedAt)

	err := verifySignatureAt(payload, header, testSecret, signedAt.Add(SignatureTolerance+time.Second))
	assert.ErrorIs(t, err, ErrBadSignature)

	// Timestamps from the future are rejected symmetrically.
	err = verifySignatureAt(payload, header, testSecret, signedAt.Add(-SignatureTolerance-time.Second))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignature_WithinTolerance(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Unix(1716400000, 0)
	header := Sign(payload, testSecret, signedAt)

	err := verifySignatureAt(payload, header, testSecret, signedAt.Add(SignatureTolerance-time.Second))
	assert.NoError(t, err)
}

func TestVerifySignature_MalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1716400000, 0)

	for _, header := range []string{
		"",
		"garbage",
		"t=1716400000",
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		"t=1716400000,v1=not-hex",
	} {
		err := verifySignatureAt(payload, header, testSecret, now)
		assert.ErrorIs(t, err, ErrBadSignature, "header %q", header)
	}
}

func TestVerifySignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1716400000, 0)
	valid := Sign(payload, testSecret, now)

	// A rotated-secret delivery carries the old digest first.
	header := "t=1716400000,v1=" + "00000000000000000000000000000000" +
		"," + valid[len("t=1716400000,"):]

	err := verifySignatureAt(payload, header, testSecret, now)
	assert.NoError(t, err)
}

func TestParseEvent_PaymentIntentLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name: "processing",
			payload: `{"id":"evt_1","type":"payment_intent.processing",
				"data":{"object":{"id":"pi_1","customer":"cus_1","amount":2500}}}`,
			want: PaymentProcessing{Intent: PaymentIntent{ID: "pi_1", CustomerID: "cus_1", Amount: 2500}},
		},
		{
			name: "succeeded",
			payload: `{"id":"evt_2","type":"payment_intent.succeeded",
				"data":{"object":{"id":"pi_2","customer":"cus_2","amount":100}}}`,
			want: PaymentSucceeded{Intent: PaymentIntent{ID: "pi_2", CustomerID: "cus_2", Amount: 100}},
		},
		{
			name: "canceled",
			payload: `{"id":"evt_3","type":"payment_intent.canceled",
				"data":{"object":{"id":"pi_3","customer":"cus_3","amount":100,"cancellation_reason":"abandoned"}}}`,
			want: PaymentCanceled{Intent: PaymentIntent{ID: "pi_3", CustomerID: "cus_3", Amount: 100}, Reason: "abandoned"},
		},
		{
			name: "failed",
			payload: `{"id":"evt_4","type":"payment_intent.payment_failed",
				"data":{"object":{"id":"pi_4","customer":"cus_4","amount":100,
				"last_payment_error":{"message":"card declined"}}}}`,
			want: PaymentFailed{Intent: PaymentIntent{ID: "pi_4", CustomerID: "cus_4", Amount: 100}, Reason: "card declined"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, event)
		})
	}
}

func TestParseEvent_PayoutCreated(t *testing.T) {
	payload := `{"id":"evt_5","type":"transfer.created",
		"data":{"object":{"id":"po_1","amount":5000}}}`

	event, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, PayoutCreated{ExternalPayoutID: "po_1", Amount: 5000}, event)
}

func TestParseEvent_UnknownType(t *testing.T) {
	payload := `{"id":"evt_6","type":"charge.refunded","data":{"object":{}}}`

	event, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Type: "charge.refunded"}, event)
}

func TestParseEvent_MissingCustomer(t *testing.T) {
	payload := `{"id":"evt_7","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_7","amount":100}}}`

	event, err := ParseEvent([]byte(payload))
	require.NoError(t, err)

	succeeded, ok := event.(PaymentSucceeded)
	require.True(t, ok)
	assert.Empty(t, succeeded.Intent.CustomerID)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"id":"evt_8","type":"payment_intent.succeeded","data":{"object":"nope"}}`))
	assert.Error(t, err)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "payment_intent.processing", EventName(PaymentProcessing{}))
	assert.Equal(t, "payment_intent.succeeded", EventName(PaymentSucceeded{}))
	assert.Equal(t, "payment_intent.canceled", EventName(PaymentCanceled{}))
	assert.Equal(t, "payment_intent.payment_failed", EventName(PaymentFailed{}))
	assert.Equal(t, "transfer.created", EventName(PayoutCreated{}))
	assert.Equal(t, "unknown", EventName(Unknown{Type: "whatever"}))
}
