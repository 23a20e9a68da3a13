// Package alerting evaluates inventory against each user's thresholds and
// dispatches the resulting notifications.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
)

// Repository is the part of the inventory store the alert job reads and writes.
type Repository interface {
	ListEligibleUsers(ctx context.Context) ([]model.User, error)
	FindLowStock(ctx context.Context, userID string, threshold int) ([]model.Product, error)
	FindExpiringWithin(ctx context.Context, userID string, now time.Time, days int) ([]model.Product, error)
	SetAlertFlags(ctx context.Context, productIDs []string, flag model.FlagName, value bool) (int64, error)
}

// Plan is the outcome of evaluating one user: what to send and which flags to set.
type Plan struct {
	UserID        string                      `json:"user_id"`
	Notifications []model.PendingNotification `json:"notifications"`
	LowStockIDs   []string                    `json:"low_stock_ids"`
	ExpiringIDs   []string                    `json:"expiring_ids"`
}

// Evaluator turns a user's inventory into pending notifications.
type Evaluator struct {
	repo            Repository
	suppressRepeats bool
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithSuppressRepeats leaves products whose alert flag is already set out of
// notifications. They stay in the plan's flag sets.
func WithSuppressRepeats(on bool) EvaluatorOption {
	return func(e *Evaluator) { e.suppressRepeats = on }
}

// NewEvaluator creates an evaluator reading from repo.
func NewEvaluator(repo Repository, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{repo: repo}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate builds the notification plan of one eligible user at instant now.
func (e *Evaluator) Evaluate(ctx context.Context, user model.User, now time.Time) (*Plan, error) {
	threshold := user.Preferences.LowStockThreshold

	found, err := e.repo.FindLowStock(ctx, user.ID, threshold)
	if err != nil {
		return nil, fmt.Errorf("find low stock: %w", err)
	}
	low := filter(found, func(p model.Product) bool { return policy.IsLowStock(p.Quantity, threshold) })

	found, err = e.repo.FindExpiringWithin(ctx, user.ID, now, policy.ExpiryHorizonDays)
	if err != nil {
		return nil, fmt.Errorf("find expiring products: %w", err)
	}
	expiring := filter(found, func(p model.Product) bool { return policy.IsExpiringSoon(p.ExpiryDate, now) })

	plan := &Plan{
		UserID:        user.ID,
		Notifications: []model.PendingNotification{},
		LowStockIDs:   productIDs(low),
		ExpiringIDs:   productIDs(expiring),
	}

	if e.suppressRepeats {
		low = filter(low, func(p model.Product) bool { return !p.Alerts.LowStock })
		expiring = filter(expiring, func(p model.Product) bool { return !p.Alerts.ExpiringSoon })
	}

	prefs := user.Preferences.Notifications
	smsEnabled := prefs.SMS && user.HasPhone()

	if len(low) > 0 {
		if prefs.Email {
			plan.Notifications = append(plan.Notifications, model.PendingNotification{
				UserID:      user.ID,
				Channel:     model.ChannelEmail,
				Severity:    model.SeverityNormal,
				Kind:        model.KindLowStock,
				Recipient:   user.Email,
				Products:    low,
				EvaluatedAt: now,
			})
		}
		if smsEnabled {
			for _, p := range low {
				if !policy.IsCritical(p.Quantity) {
					continue
				}
				plan.Notifications = append(plan.Notifications, model.PendingNotification{
					UserID:      user.ID,
					Channel:     model.ChannelSMS,
					Severity:    model.SeverityCritical,
					Kind:        model.KindLowStock,
					Recipient:   user.PhoneNumber,
					Products:    []model.Product{p},
					EvaluatedAt: now,
				})
			}
		}
	}

	if len(expiring) > 0 {
		if prefs.Email {
			plan.Notifications = append(plan.Notifications, model.PendingNotification{
				UserID:      user.ID,
				Channel:     model.ChannelEmail,
				Severity:    model.SeverityNormal,
				Kind:        model.KindExpiringSoon,
				Recipient:   user.Email,
				Products:    expiring,
				EvaluatedAt: now,
			})
		}
		if smsEnabled {
			for _, p := range expiring {
				if !policy.IsUrgentExpiry(p.ExpiryDate, now) {
					continue
				}
				plan.Notifications = append(plan.Notifications, model.PendingNotification{
					UserID:      user.ID,
					Channel:     model.ChannelSMS,
					Severity:    model.SeverityUrgent,
					Kind:        model.KindExpiringSoon,
					Recipient:   user.PhoneNumber,
					Products:    []model.Product{p},
					DaysLeft:    policy.DaysUntil(*p.ExpiryDate, now),
					EvaluatedAt: now,
				})
			}
		}
	}

	return plan, nil
}

func filter(products []model.Product, keep func(model.Product) bool) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func productIDs(products []model.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
