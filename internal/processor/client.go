package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the processor API client.
type Config struct {
	// URL is the base URL of the processor's API.
	URL string
	// APIKey authenticates outbound calls.
	APIKey string
	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
	// Timeout per request (optional, defaults to 10s).
	Timeout time.Duration
}

// Client issues outbound calls to the payment processor.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a processor API client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{url: config.URL, apiKey: config.APIKey, httpClient: httpClient}
}

type createPayoutRequest struct {
	Destination string            `json:"destination"`
	Amount      int64             `json:"amount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type createPayoutResponse struct {
	ID string `json:"id"`
}

// CreatePayout asks the processor to move funds to the user's connected
// destination. Metadata carries the internal payout ref so the creation
// confirmation webhook can be correlated back.
func (c *Client) CreatePayout(ctx context.Context, destinationID string, amount int64, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(createPayoutRequest{
		Destination: destinationID,
		Amount:      amount,
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/payouts", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read payout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("processor returned status %d: %s", resp.StatusCode, raw)
	}

	var out createPayoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode payout response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("processor returned payout without id")
	}
	return out.ID, nil
}
