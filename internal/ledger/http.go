package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig configures the HTTP ledger client.
type HTTPConfig struct {
	// URL is the base URL of the ledger gateway.
	URL string
	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
	// Timeout per request (optional, defaults to 5s). Financial calls are
	// not interruptible once issued; a timeout abandons the wait, it does
	// not roll anything back.
	Timeout time.Duration
}

// HTTPClient talks JSON over HTTP to the ledger gateway.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClient creates a ledger gateway client.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{url: config.URL, httpClient: httpClient}
}

type errorBody struct {
	Error string `json:"error"`
}

// post issues a JSON POST and decodes the response into out (out may be
// nil). Gateway error details become sentinel errors.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ledger response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail errorBody
		if err := json.Unmarshal(raw, &detail); err == nil {
			switch detail.Error {
			case "NOT_ENOUGH_FUNDS":
				return ErrInsufficientFunds
			case "NOT_FOUND":
				return ErrNotFound
			}
			if detail.Error != "" {
				return fmt.Errorf("ledger error: %s", detail.Error)
			}
		}
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode ledger response: %w", err)
		}
	}
	return nil
}

type transferRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
}

func (c *HTTPClient) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) error {
	return c.post(ctx, "/v1/transfers", transferRequest{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
	}, nil)
}

type pendingTransferRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	CustomerID      string `json:"customer_id"`
	UserID          string `json:"user_id"`
	Amount          int64  `json:"amount"`
}

type transferRefResponse struct {
	TransferRef string `json:"transfer_ref"`
}

func (c *HTTPClient) CreatePendingTransfer(ctx context.Context, paymentIntentID, customerID, userID string, amount int64) (string, error) {
	var resp transferRefResponse
	err := c.post(ctx, "/v1/pending-transfers", pendingTransferRequest{
		PaymentIntentID: paymentIntentID,
		CustomerID:      customerID,
		UserID:          userID,
		Amount:          amount,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.TransferRef, nil
}

type refAmountRequest struct {
	TransferRef string `json:"transfer_ref"`
	Amount      int64  `json:"amount"`
}

func (c *HTTPClient) PostPendingTransfer(ctx context.Context, transferRef string, amount int64) error {
	return c.post(ctx, "/v1/pending-transfers/post", refAmountRequest{TransferRef: transferRef, Amount: amount}, nil)
}

func (c *HTTPClient) VoidPendingTransfer(ctx context.Context, transferRef string, amount int64) error {
	return c.post(ctx, "/v1/pending-transfers/void", refAmountRequest{TransferRef: transferRef, Amount: amount}, nil)
}

func (c *HTTPClient) CreateAndPostTransfer(ctx context.Context, paymentIntentID, customerID, userID string, amount int64) error {
	return c.post(ctx, "/v1/transfers/create-and-post", pendingTransferRequest{
		PaymentIntentID: paymentIntentID,
		CustomerID:      customerID,
		UserID:          userID,
		Amount:          amount,
	}, nil)
}

func (c *HTTPClient) GetPendingTransfer(ctx context.Context, paymentIntentID string) (PendingTransfer, error) {
	var resp PendingTransfer
	err := c.post(ctx, "/v1/pending-transfers/lookup", map[string]string{
		"payment_intent_id": paymentIntentID,
	}, &resp)
	if err != nil {
		return PendingTransfer{}, err
	}
	if resp.Status == "" {
		resp.Status = StatusNone
	}
	return resp, nil
}

type pendingPayoutRequest struct {
	OwnerUserID   string `json:"owner_user_id"`
	DestinationID string `json:"destination_id"`
	Amount        int64  `json:"amount"`
}

type payoutRefResponse struct {
	PayoutRef string `json:"payout_ref"`
}

func (c *HTTPClient) CreatePendingPayout(ctx context.Context, ownerUserID, destinationID string, amount int64) (string, error) {
	var resp payoutRefResponse
	err := c.post(ctx, "/v1/pending-payouts", pendingPayoutRequest{
		OwnerUserID:   ownerUserID,
		DestinationID: destinationID,
		Amount:        amount,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.PayoutRef, nil
}

func (c *HTTPClient) VoidPendingPayout(ctx context.Context, payoutRef string, amount int64) error {
	return c.post(ctx, "/v1/pending-payouts/void", map[string]any{
		"payout_ref": payoutRef,
		"amount":     amount,
	}, nil)
}

func (c *HTTPClient) RecordExternalPayout(ctx context.Context, payoutRef, externalPayoutID string) error {
	return c.post(ctx, "/v1/pending-payouts/external-id", map[string]string{
		"payout_ref":         payoutRef,
		"external_payout_id": externalPayoutID,
	}, nil)
}

func (c *HTTPClient) PostPendingPayout(ctx context.Context, externalPayoutID string, amount int64) error {
	return c.post(ctx, "/v1/pending-payouts/post", map[string]any{
		"external_payout_id": externalPayoutID,
		"amount":             amount,
	}, nil)
}

var _ Client = (*HTTPClient)(nil)
