package alerting_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMail struct {
	to       string
	kind     model.AlertKind
	products []string
	now      time.Time
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendAggregated(_ context.Context, to string, kind model.AlertKind, products []model.Product, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.ProductName)
	}
	m.sent = append(m.sent, sentMail{to: to, kind: kind, products: names, now: now})
	return nil
}

func (m *fakeMailer) SendVerification(context.Context, string, string, time.Duration) error {
	return nil
}

func (m *fakeMailer) mails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type sentSMS struct {
	phone   string
	message string
}

type fakeTexter struct {
	mu    sync.Mutex
	sent  []sentSMS
	err   error
	block chan struct{} // when set, SendSMS ignores ctx and waits on it
}

func (t *fakeTexter) SendSMS(_ context.Context, phone, message string) error {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, sentSMS{phone: phone, message: message})
	return nil
}

func (t *fakeTexter) messages() []sentSMS {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentSMS(nil), t.sent...)
}

type flagCall struct {
	ids  []string
	flag model.FlagName
}

// fakeRepo serves canned products and can fail per user.
type fakeRepo struct {
	mu       sync.Mutex
	users    []model.User
	listErr  error
	low      map[string][]model.Product
	expiring map[string][]model.Product
	failFor  map[string]error
	flagErr  error
	flags    []flagCall
}

func (r *fakeRepo) ListEligibleUsers(context.Context) ([]model.User, error) {
	return r.users, r.listErr
}

func (r *fakeRepo) FindLowStock(_ context.Context, userID string, _ int) ([]model.Product, error) {
	if err := r.failFor[userID]; err != nil {
		return nil, err
	}
	return r.low[userID], nil
}

func (r *fakeRepo) FindExpiringWithin(_ context.Context, userID string, _ time.Time, _ int) ([]model.Product, error) {
	return r.expiring[userID], nil
}

func (r *fakeRepo) SetAlertFlags(_ context.Context, ids []string, flag model.FlagName, _ bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flagErr != nil {
		return 0, r.flagErr
	}
	r.flags = append(r.flags, flagCall{ids: ids, flag: flag})
	return int64(len(ids)), nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []model.SweepReport
	err     error
}

func (r *fakeReporter) Name() string { return "fake" }

func (r *fakeReporter) Report(_ context.Context, report model.SweepReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

var errRepoDown = errors.New("repository unavailable")
