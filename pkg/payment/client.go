// Package payment integrates the payment provider: webhook payload types for
// the inbound confirmation callback and the refund call the sweep uses.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/resilience"
)

const defaultBaseURL = "https://api.pagamentos.io"

// EventPaymentConfirmed is the webhook event type that triggers fulfillment.
const EventPaymentConfirmed = "payment.confirmed"

// WebhookEvent is the provider's callback payload.
type WebhookEvent struct {
	EventType         string `json:"event_type"`
	PaymentID         string `json:"payment_id"`
	ExternalReference string `json:"external_reference"` // our job id
	PayerEmail        string `json:"payer_email,omitempty"`
}

// RefundResult reports a refund attempt.
type RefundResult struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refund_id,omitempty"`
}

// Client performs outbound payment-provider calls.
type Client interface {
	Refund(ctx context.Context, paymentID string) (*RefundResult, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a payment provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Refund(ctx context.Context, paymentID string) (*RefundResult, error) {
	body, err := json.Marshal(map[string]string{"payment_id": paymentID})
	if err != nil {
		return nil, eris.Wrap(err, "payment: marshal refund request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "payment: build refund request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "payment: send refund"), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := eris.Errorf("payment: refund %s failed with http %d: %s", paymentID, resp.StatusCode, string(data))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result RefundResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, eris.Wrap(err, "payment: decode refund response")
	}
	return &result, nil
}
