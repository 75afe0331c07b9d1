/**
 * @description
 * This package provides a client for interacting with the Stripe API. It
 * encapsulates the logic for making authenticated HTTP requests to Stripe's
 * endpoints, handling form-encoded request body construction, and parsing
 * responses.
 *
 * Charges made through this client are off-session, auto-confirmed and
 * single-attempt: the card must already be saved against the customer, and a
 * charge that would require client interaction fails instead of going
 * interactive. Every charge carries an idempotency key supplied by the caller
 * so a retried request cannot charge twice.
 *
 * @dependencies
 * - context, encoding/json, fmt, io, net/http, net/url, strconv, time: Standard Go libraries.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
func NewClient(baseURL, secretKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Customer represents a Stripe customer object.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// customerList is the response shape of GET /v1/customers.
type customerList struct {
	Data []Customer `json:"data"`
}

// SetupIntent represents a Stripe setup intent used for out-of-band card collection.
type SetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// PaymentMethod represents the card details of a saved Stripe payment method.
type PaymentMethod struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Card     struct {
		Brand    string `json:"brand"`
		Last4    string `json:"last4"`
		ExpMonth int    `json:"exp_month"`
		ExpYear  int    `json:"exp_year"`
	} `json:"card"`
}

// PaymentIntent is the result of a charge attempt.
type PaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	LatestCharge struct {
		ID         string `json:"id"`
		ReceiptURL string `json:"receipt_url"`
	} `json:"latest_charge"`
}

// Succeeded reports whether the payment intent reached its terminal success state.
func (p *PaymentIntent) Succeeded() bool {
	return p.Status == "succeeded"
}

// ChargeParams describes one off-session charge against a saved payment method.
type ChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	AmountCents     int64
	Currency        string
	Description     string
	Metadata        map[string]string
	IdempotencyKey  string
}

// APIError represents an error returned by the Stripe API.
type APIError struct {
	HTTPStatus  int
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

func (e *APIError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("stripe api error: %s (decline_code=%s)", e.Message, e.DeclineCode)
	}
	if e.Message != "" {
		return fmt.Sprintf("stripe api error: %s", e.Message)
	}
	return "unknown stripe api error"
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// FindCustomerByEmail looks up an existing Stripe customer by email. Callers use
// this before CreateCustomer so the processor never accumulates duplicate
// customer records for one user. Returns nil when no customer matches.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var list customerList
	if err := c.doRequest(ctx, "GET", "/v1/customers?"+query.Encode(), nil, "", &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return &list.Data[0], nil
}

// CreateCustomer creates a new Stripe customer record.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	if strings.TrimSpace(name) != "" {
		form.Set("name", name)
	}

	var customer Customer
	if err := c.doRequest(ctx, "POST", "/v1/customers", form, "", &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateSetupIntent creates a setup intent for collecting a card that will be
// charged off-session later. The returned client secret goes to the frontend;
// this service never touches raw card data.
func (c *Client) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("usage", "off_session")
	form.Add("payment_method_types[]", "card")

	var intent SetupIntent
	if err := c.doRequest(ctx, "POST", "/v1/setup_intents", form, "", &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentMethod fetches a payment method's card details for local mirroring.
func (c *Client) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	var method PaymentMethod
	if err := c.doRequest(ctx, "GET", "/v1/payment_methods/"+url.PathEscape(paymentMethodID), nil, "", &method); err != nil {
		return nil, err
	}
	return &method, nil
}

// CreatePaymentIntent executes a single off-session charge against a saved
// payment method. The intent is confirmed immediately and errors rather than
// entering a requires-action state, so the outcome is terminal when the call
// returns. A non-2xx response is returned as a typed *APIError.
func (c *Client) CreatePaymentIntent(ctx context.Context, params ChargeParams) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", params.Currency)
	form.Set("customer", params.CustomerID)
	form.Set("payment_method", params.PaymentMethodID)
	form.Set("off_session", "true")
	form.Set("confirm", "true")
	form.Set("error_on_requires_action", "true")
	form.Add("expand[]", "latest_charge")
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	for key, value := range params.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	var intent PaymentIntent
	if err := c.doRequest(ctx, "POST", "/v1/payment_intents", form, params.IdempotencyKey, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// doRequest executes one authenticated request against the Stripe API and
// decodes the response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create stripe request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute stripe request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
			log.Printf("level=warn component=stripe_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return fmt.Errorf("stripe returned status %d", resp.StatusCode)
		}
		envelope.Error.HTTPStatus = resp.StatusCode
		log.Printf("level=warn component=stripe_client path=%s status=%d code=%q decline_code=%q", path, resp.StatusCode, envelope.Error.Code, envelope.Error.DeclineCode)
		return &envelope.Error
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to decode stripe response: %w", err)
		}
	}
	return nil
}
