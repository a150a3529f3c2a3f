// Package mercadopago is the client for the provider's payment lookup API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"payment-webhook-gateway/internal/core/ports"
)

// ProviderName is the :provider path segment the webhook route accepts.
const ProviderName = "mercadopago"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentProvider against /v1/payments/{id}.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  HTTPClient
}

// NewClient creates a new payments API client. Deadlines come from the caller's context.
func NewClient(baseURL, accessToken string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

type paymentResponse struct {
	ID                json.Number    `json:"id"`
	Status            string         `json:"status"`
	StatusDetail      string         `json:"status_detail"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	PaymentMethodID   string         `json:"payment_method_id"`
	ExternalReference string         `json:"external_reference"`
	Metadata          map[string]any `json:"metadata"`
}

// GetPayment fetches the authoritative state of a payment.
// Returns ports.ErrProviderPaymentNotFound on 404.
func (c *Client) GetPayment(ctx context.Context, externalPaymentID string) (*ports.ProviderPayment, error) {
	endpoint := c.baseURL + "/v1/payments/" + url.PathEscape(externalPaymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", externalPaymentID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("payment %s: %w", externalPaymentID, ports.ErrProviderPaymentNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get payment %s: unexpected status %d: %s", externalPaymentID, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body paymentResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", externalPaymentID, err)
	}

	return &ports.ProviderPayment{
		ID:                body.ID.String(),
		Status:            body.Status,
		StatusDetail:      body.StatusDetail,
		TransactionAmount: body.TransactionAmount,
		CurrencyID:        body.CurrencyID,
		PaymentMethodID:   body.PaymentMethodID,
		ExternalReference: body.ExternalReference,
		Metadata:          body.Metadata,
	}, nil
}
