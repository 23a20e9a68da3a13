// Package policy classifies products against stock and expiry thresholds.
// Every function is pure; callers supply the clock.
package policy

import (
	"math"
	"time"
)

const (
	// CriticalQuantity is the fixed quantity at or below which a low-stock
	// product also warrants an SMS.
	CriticalQuantity = 5

	// ExpiryHorizonDays is how far ahead expiring products are reported.
	ExpiryHorizonDays = 7

	// UrgentExpiryDays is the horizon for urgent expiry SMS.
	UrgentExpiryDays = 3
)

const day = 24 * time.Hour

// IsLowStock reports whether quantity is at or below the user's threshold.
func IsLowStock(quantity, threshold int) bool {
	return quantity <= threshold
}

// IsCritical reports whether quantity is at or below CriticalQuantity.
func IsCritical(quantity int) bool {
	return quantity <= CriticalQuantity
}

// Horizon returns the instant days whole days after now.
func Horizon(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * day)
}

// WithinDays reports whether expiry falls in the closed window [now, now+days].
func WithinDays(expiry, now time.Time, days int) bool {
	return !expiry.Before(now) && !expiry.After(Horizon(now, days))
}

// DaysUntil returns the number of days until expiry, rounded up. It is zero or
// negative once expiry has passed.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))
}

// IsExpiringSoon reports whether expiry lies within ExpiryHorizonDays of now.
// A nil expiry never expires.
func IsExpiringSoon(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return false
	}
	return WithinDays(*expiry, now, ExpiryHorizonDays)
}

// IsUrgentExpiry reports whether expiry is no later than UrgentExpiryDays from
// now. Already expired dates qualify as well; callers only pass products that
// are inside the expiry window.
func IsUrgentExpiry(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return false
	}
	return !expiry.After(Horizon(now, UrgentExpiryDays))
}
