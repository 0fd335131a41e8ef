package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Processor is the provider-agnostic payment interface used by the
// scheduling core. The native appointment record is the source of truth;
// money movement is best-effort and callers must treat failures as
// log-and-continue, never as a reason to roll back a cancellation.
type Processor interface {
	GetPaymentIntent(ctx context.Context, id string) (Intent, error)
	CreateFullRefund(ctx context.Context, paymentIntentID string) (Refund, error)
}

type Intent struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var ErrUnavailable = errors.New("payment: processor unavailable")

// HTTPProcessor talks to a Stripe-style REST API (form-encoded writes,
// bearer secret key).
type HTTPProcessor struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPProcessor(baseURL, secretKey string, timeout time.Duration) *HTTPProcessor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProcessor{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProcessor) GetPaymentIntent(ctx context.Context, id string) (Intent, error) {
	if id == "" {
		return Intent{}, fmt.Errorf("payment: intent id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intent{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out Intent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (p *HTTPProcessor) CreateFullRefund(ctx context.Context, paymentIntentID string) (Refund, error) {
	if paymentIntentID == "" {
		return Refund{}, fmt.Errorf("payment: intent id required")
	}
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		return Refund{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Refund{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Refund{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out Refund
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Refund{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
