package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/notify"
)

// DefaultSendTimeout bounds a single channel call.
const DefaultSendTimeout = 10 * time.Second

// Dispatcher hands pending notifications to the configured channels.
// A nil mailer or texter means that channel is not configured.
type Dispatcher struct {
	mailer  notify.Mailer
	texter  notify.Texter
	timeout time.Duration
	logger  *slog.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout sets the per-call channel timeout.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher creates a dispatcher. Pass a nil mailer or texter for an
// unconfigured channel.
func NewDispatcher(mailer notify.Mailer, texter notify.Texter, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mailer:  mailer,
		texter:  texter,
		timeout: DefaultSendTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one notification synchronously. It never panics on channel
// errors; failures are logged and reported in the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, n model.PendingNotification) notify.Outcome {
	var send func(context.Context) error

	switch n.Channel {
	case model.ChannelEmail:
		if d.mailer == nil {
			return d.skip(n)
		}
		// Days left are measured from the evaluation instant so email and
		// SMS agree.
		at := n.EvaluatedAt
		if at.IsZero() {
			at = time.Now()
		}
		send = func(ctx context.Context) error {
			return d.mailer.SendAggregated(ctx, n.Recipient, n.Kind, n.Products, at)
		}
	case model.ChannelSMS:
		if d.texter == nil {
			return d.skip(n)
		}
		msg, err := SMSText(n)
		if err != nil {
			return d.fail(n, err)
		}
		send = func(ctx context.Context) error {
			return d.texter.SendSMS(ctx, n.Recipient, msg)
		}
	default:
		return d.fail(n, fmt.Errorf("unknown channel %q", n.Channel))
	}

	if err := d.callWithTimeout(ctx, send); err != nil {
		return d.fail(n, err)
	}

	d.logger.Info("alert sent",
		"user_id", n.UserID,
		"channel", n.Channel,
		"kind", n.Kind,
		"severity", n.Severity,
		"products", len(n.Products),
	)
	return notify.Outcome{Status: notify.StatusSent}
}

// callWithTimeout runs send under the dispatch timeout and returns when
// either the call completes or the deadline passes.
func (d *Dispatcher) callWithTimeout(ctx context.Context, send func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("channel panicked: %v", r)
			}
		}()
		errc <- send(ctx)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("send timed out after %s: %w", d.timeout, ctx.Err())
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) skip(n model.PendingNotification) notify.Outcome {
	d.logger.Debug("channel not configured, skipping alert",
		"user_id", n.UserID,
		"channel", n.Channel,
		"kind", n.Kind,
	)
	return notify.Outcome{Status: notify.StatusSkipped}
}

func (d *Dispatcher) fail(n model.PendingNotification, err error) notify.Outcome {
	d.logger.Error("send alert failed",
		"user_id", n.UserID,
		"channel", n.Channel,
		"kind", n.Kind,
		"error", err,
	)
	return notify.Outcome{Status: notify.StatusFailed, Err: err}
}
