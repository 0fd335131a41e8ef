package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CancellationNotice carries everything the booking-cancelled email needs.
// Refund fields are zero when no refund was attempted or it failed.
type CancellationNotice struct {
	TenantID     string
	EventID      string
	Title        string
	Start        time.Time
	VisitorName  string
	VisitorEmail string

	RefundID          string
	RefundAmountMinor int64
}

// Sender delivers visitor-facing notifications. All sends are best-effort:
// callers log failures and move on, they never block a state change on it.
type Sender interface {
	SendBookingCancelled(ctx context.Context, n CancellationNotice) error
}

// LogSender records the notification instead of delivering it; used until a
// real mail provider is wired in and as the local-env default.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) SendBookingCancelled(ctx context.Context, n CancellationNotice) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("booking cancelled notice",
		"tenant_id", n.TenantID,
		"event_id", n.EventID,
		"visitor_email", n.VisitorEmail,
		"refund_id", n.RefundID,
	)
	return nil
}

// Fake captures notices for tests.
type Fake struct {
	mu      sync.Mutex
	Err     error
	Notices []CancellationNotice
}

func (f *Fake) SendBookingCancelled(ctx context.Context, n CancellationNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, n)
	return f.Err
}

func (f *Fake) Sent() []CancellationNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CancellationNotice, len(f.Notices))
	copy(out, f.Notices)
	return out
}
