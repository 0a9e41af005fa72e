// Package identity resolves external identifiers (phone numbers, processor
// customer ids) to internal user ids via the user-identity service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrUserNotFound: no user matches the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoDestination: the user has no linked payout destination.
	ErrNoDestination = errors.New("no payout destination linked")
)

// Directory is the lookup surface the executor and reconciliation engine
// consume.
type Directory interface {
	UserByPhone(ctx context.Context, phone string) (string, error)
	UserByCustomerID(ctx context.Context, customerID string) (string, error)
	PayoutDestination(ctx context.Context, userID string) (string, error)
}

// HTTPConfig configures the HTTP directory client.
type HTTPConfig struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HTTPDirectory resolves lookups against the identity service.
type HTTPDirectory struct {
	url        string
	httpClient *http.Client
}

// NewHTTPDirectory creates an identity service client.
func NewHTTPDirectory(config HTTPConfig) *HTTPDirectory {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPDirectory{url: config.URL, httpClient: httpClient}
}

func (d *HTTPDirectory) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read identity response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode identity response: %w", err)
	}
	return nil
}

type userResponse struct {
	UserID string `json:"user_id"`
}

func (d *HTTPDirectory) UserByPhone(ctx context.Context, phone string) (string, error) {
	var resp userResponse
	if err := d.get(ctx, "/v1/users/by-phone?phone="+url.QueryEscape(phone), &resp); err != nil {
		return "", err
	}
	if resp.UserID == "" {
		return "", ErrUserNotFound
	}
	return resp.UserID, nil
}

func (d *HTTPDirectory) UserByCustomerID(ctx context.Context, customerID string) (string, error) {
	var resp userResponse
	if err := d.get(ctx, "/v1/users/by-customer/"+url.PathEscape(customerID), &resp); err != nil {
		return "", err
	}
	if resp.UserID == "" {
		return "", ErrUserNotFound
	}
	return resp.UserID, nil
}

type destinationResponse struct {
	DestinationID string `json:"destination_id"`
}

func (d *HTTPDirectory) PayoutDestination(ctx context.Context, userID string) (string, error) {
	var resp destinationResponse
	err := d.get(ctx, "/v1/users/"+url.PathEscape(userID)+"/payout-destination", &resp)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrNoDestination
		}
		return "", err
	}
	if resp.DestinationID == "" {
		return "", ErrNoDestination
	}
	return resp.DestinationID, nil
}

var _ Directory = (*HTTPDirectory)(nil)
