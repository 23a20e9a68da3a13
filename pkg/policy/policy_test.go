package policy_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestIsLowStock(t *testing.T) {
	tests := []struct {
		qty, threshold int
		want           bool
	}{
		{3, 10, true},
		{10, 10, true},
		{11, 10, false},
		{0, 0, true},
		{1, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.IsLowStock(tt.qty, tt.threshold), "qty=%d threshold=%d", tt.qty, tt.threshold)
	}
}

func TestIsCritical(t *testing.T) {
	assert.True(t, policy.IsCritical(0))
	assert.True(t, policy.IsCritical(5))
	assert.False(t, policy.IsCritical(6))
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 2, policy.DaysUntil(now.Add(48*time.Hour), now))
	assert.Equal(t, 3, policy.DaysUntil(now.Add(49*time.Hour), now))
	assert.Equal(t, 1, policy.DaysUntil(now.Add(time.Minute), now))
	assert.Equal(t, 0, policy.DaysUntil(now, now))
	assert.Equal(t, -1, policy.DaysUntil(now.Add(-25*time.Hour), now))
}

func TestIsExpiringSoon(t *testing.T) {
	day := 24 * time.Hour
	assert.False(t, policy.IsExpiringSoon(nil, now))
	assert.True(t, policy.IsExpiringSoon(at(0), now))
	assert.True(t, policy.IsExpiringSoon(at(2*day), now))
	assert.True(t, policy.IsExpiringSoon(at(7*day), now))
	assert.False(t, policy.IsExpiringSoon(at(7*day+time.Second), now))
	assert.False(t, policy.IsExpiringSoon(at(8*day), now))
	assert.False(t, policy.IsExpiringSoon(at(10*day), now))
	assert.False(t, policy.IsExpiringSoon(at(-time.Second), now))
}

func TestIsUrgentExpiry(t *testing.T) {
	day := 24 * time.Hour
	assert.False(t, policy.IsUrgentExpiry(nil, now))
	assert.True(t, policy.IsUrgentExpiry(at(2*day), now))
	assert.True(t, policy.IsUrgentExpiry(at(3*day), now))
	assert.False(t, policy.IsUrgentExpiry(at(3*day+time.Second), now))
	assert.True(t, policy.IsUrgentExpiry(at(-day), now))
}

func TestPolicyProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("critical implies low stock for thresholds at or above the critical tier", prop.ForAll(
		func(qty, threshold int) bool {
			if policy.IsCritical(qty) {
				return policy.IsLowStock(qty, threshold)
			}
			return true
		},
		gen.IntRange(0, 1000),
		gen.IntRange(policy.CriticalQuantity, 1000),
	))

	properties.Property("urgent inside the window implies expiring soon", prop.ForAll(
		func(minutes int64) bool {
			expiry := now.Add(time.Duration(minutes) * time.Minute)
			if policy.IsExpiringSoon(&expiry, now) && policy.IsUrgentExpiry(&expiry, now) {
				return policy.DaysUntil(expiry, now) <= policy.UrgentExpiryDays
			}
			return true
		},
		gen.Int64Range(-60*24*30, 60*24*30),
	))

	properties.Property("expiring soon matches the seven day window", prop.ForAll(
		func(minutes int64) bool {
			expiry := now.Add(time.Duration(minutes) * time.Minute)
			want := minutes >= 0 && minutes <= 7*24*60
			return policy.IsExpiringSoon(&expiry, now) == want
		},
		gen.Int64Range(-60*24*30, 60*24*30),
	))

	properties.TestingRun(t)
}
