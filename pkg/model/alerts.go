package model

import "time"

// Channel is an outbound notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AlertKind is the condition a notification reports.
type AlertKind string

const (
	KindLowStock     AlertKind = "low_stock"
	KindExpiringSoon AlertKind = "expiring_soon"
)

// Severity is the urgency tier of a notification.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityCritical Severity = "critical" // quantity at or below the fixed critical tier
	SeverityUrgent   Severity = "urgent"   // expiry within the fixed urgent horizon
)

// FlagName names a product alert flag column.
type FlagName string

const (
	FlagLowStock     FlagName = "low_stock"
	FlagExpiringSoon FlagName = "expiring_soon"
)

// PendingNotification is one message the sweep intends to send. It lives only
// for the duration of a sweep.
type PendingNotification struct {
	UserID    string    `json:"user_id"`
	Channel   Channel   `json:"channel"`
	Severity  Severity  `json:"severity"`
	Kind      AlertKind `json:"kind"`
	Recipient string    `json:"recipient"`
	Products  []Product `json:"products"`
	// DaysLeft is set for single-product expiry SMS.
	DaysLeft int `json:"days_left,omitempty"`
	// EvaluatedAt is the sweep instant every channel measures expiry against.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Trigger tells what started a sweep.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerStartup  Trigger = "startup"
)

// SweepReport summarizes one sweep. It is kept in memory only.
type SweepReport struct {
	Trigger        Trigger   `json:"trigger"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	UsersEvaluated int       `json:"users_evaluated"`
	UsersFailed    int       `json:"users_failed"`
	Sent           int       `json:"sent"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	FlagsUpdated   int64     `json:"flags_updated"`
	Error          string    `json:"error,omitempty"`
}

// Duration returns how long the sweep took.
func (r SweepReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
