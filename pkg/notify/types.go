// Package notify delivers alert messages over email, SMS and webhooks.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

// ErrNotConfigured is returned by constructors when a channel lacks credentials.
var ErrNotConfigured = errors.New("channel not configured")

// Status is the result class of one delivery attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped" // channel not configured
	StatusFailed  Status = "failed"
)

// Outcome describes one delivery attempt. Err is set only for StatusFailed.
type Outcome struct {
	Status Status
	Err    error
}

// Mailer sends email. Implementations must be safe for concurrent use.
type Mailer interface {
	// SendAggregated sends one email listing every product of the given alert kind.
	SendAggregated(ctx context.Context, to string, kind model.AlertKind, products []model.Product, now time.Time) error

	// SendVerification sends a one-time email verification code.
	SendVerification(ctx context.Context, to, code string, ttl time.Duration) error
}

// Texter sends SMS. Implementations must be safe for concurrent use.
type Texter interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Reporter receives the summary of every completed alert sweep.
type Reporter interface {
	// Name returns the reporter identifier.
	Name() string

	Report(ctx context.Context, report model.SweepReport) error
}
