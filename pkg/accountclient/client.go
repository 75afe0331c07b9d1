/**
 * @description
 * This package provides a client for communicating with the account-service.
 * It encapsulates the logic for making API calls to the account service,
 * specifically for fetching the contact details needed to create payment
 * processor customer records.
 */
package accountclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the account service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new account service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UserContact is the contact projection returned by the account-service.
type UserContact struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// GetUserContact fetches a user's email and display name from the
// account-service. The entries-service needs these exactly once per user, when
// lazily creating their payment processor customer record.
func (c *Client) GetUserContact(ctx context.Context, userID string) (*UserContact, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("account service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/users/%s/contact", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("account service returned error status %d", resp.StatusCode)
	}

	var contact UserContact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &contact, nil
}
