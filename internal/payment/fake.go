package payment

import (
	"context"
	"sync"
)

// Fake is an in-memory processor for tests. Configure FailRefunds to
// simulate a processor outage during cancellation.
type Fake struct {
	mu sync.Mutex

	Intents     map[string]Intent
	FailRefunds error

	RefundCalls []string
}

func NewFake() *Fake {
	return &Fake{Intents: map[string]Intent{}}
}

func (f *Fake) GetPaymentIntent(ctx context.Context, id string) (Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.Intents[id]; ok {
		return in, nil
	}
	return Intent{}, ErrUnavailable
}

func (f *Fake) CreateFullRefund(ctx context.Context, paymentIntentID string) (Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefundCalls = append(f.RefundCalls, paymentIntentID)
	if f.FailRefunds != nil {
		return Refund{}, f.FailRefunds
	}
	return Refund{ID: "re_" + paymentIntentID, Status: "succeeded"}, nil
}
