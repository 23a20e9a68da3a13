package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

// Webhook headers. The signature covers "<timestamp>.<body>" so a receiver
// can reject replays of an old delivery.
const (
	HeaderEvent     = "X-StockSync-Event"
	HeaderDelivery  = "X-StockSync-Delivery"
	HeaderSignature = "X-StockSync-Signature"
)

// Sweep events.
const (
	EventSweepCompleted = "sweep.completed"
	EventSweepPartial   = "sweep.partial"
	EventSweepAborted   = "sweep.aborted"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

// SweepEvent classifies a report: aborted when the sweep could not list
// users, partial when any user or delivery failed.
func SweepEvent(r model.SweepReport) string {
	switch {
	case r.Error != "":
		return EventSweepAborted
	case r.Failed > 0 || r.UsersFailed > 0:
		return EventSweepPartial
	default:
		return EventSweepCompleted
	}
}

// WebhookReporter delivers sweep reports to an HTTP endpoint.
type WebhookReporter struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

// NewWebhookReporter creates a webhook reporter. Deliveries are signed when
// secret is non-empty.
func NewWebhookReporter(url, secret string) *WebhookReporter {
	return &WebhookReporter{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookReporter) Name() string { return "webhook" }

type sweepSummary struct {
	Users        int   `json:"users"`
	UsersFailed  int   `json:"users_failed"`
	Sent         int   `json:"sent"`
	Skipped      int   `json:"skipped"`
	Failed       int   `json:"failed"`
	FlagsUpdated int64 `json:"flags_updated"`
	DurationMS   int64 `json:"duration_ms"`
}

type sweepDelivery struct {
	ID         string            `json:"id"`
	Event      string            `json:"event"`
	OccurredAt time.Time         `json:"occurred_at"`
	Summary    sweepSummary      `json:"summary"`
	Report     model.SweepReport `json:"report"`
}

func (w *WebhookReporter) Report(ctx context.Context, report model.SweepReport) error {
	delivery := sweepDelivery{
		ID:         uuid.NewString(),
		Event:      SweepEvent(report),
		OccurredAt: report.FinishedAt.UTC(),
		Summary: sweepSummary{
			Users:        report.UsersEvaluated,
			UsersFailed:  report.UsersFailed,
			Sent:         report.Sent,
			Skipped:      report.Skipped,
			Failed:       report.Failed,
			FlagsUpdated: report.FlagsUpdated,
			DurationMS:   report.Duration().Milliseconds(),
		},
		Report: report,
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal sweep delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StockSync-Webhook/1")
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderDelivery, delivery.ID)
	if len(w.secret) > 0 {
		req.Header.Set(HeaderSignature, SignatureHeader(w.now(), body, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver sweep report %s: %w", delivery.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected delivery %s: status %d", delivery.ID, resp.StatusCode)
	}
	return nil
}

// SignatureHeader builds the "t=<unix>,v1=<hex hmac>" signature value.
func SignatureHeader(at time.Time, body, secret []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + sign(ts, body, secret)
}

// VerifySignature checks a signature header against body. Signatures older
// than tolerance relative to now are rejected; a zero tolerance disables the
// age check.
func VerifySignature(header string, body, secret []byte, now time.Time, tolerance time.Duration) error {
	var ts, mac string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			ts = v
		case "v1":
			mac = v
		}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || mac == "" {
		return fmt.Errorf("%w: malformed header", ErrBadSignature)
	}
	if tolerance > 0 && now.Sub(time.Unix(unix, 0)).Abs() > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}
	if !hmac.Equal([]byte(mac), []byte(sign(ts, body, secret))) {
		return ErrBadSignature
	}
	return nil
}

func sign(ts string, body, secret []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(ts))
	m.Write([]byte{'.'})
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}
