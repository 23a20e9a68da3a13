package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/ogulcanaydogan/stocksync/internal/server"
	"github.com/ogulcanaydogan/stocksync/pkg/alerting"
	"github.com/ogulcanaydogan/stocksync/pkg/barcode"
	"github.com/ogulcanaydogan/stocksync/pkg/catalog"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/scheduler"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	to, code string
}

type fakeMailer struct {
	mu    sync.Mutex
	codes []capturedMail
}

func (m *fakeMailer) SendAggregated(context.Context, string, model.AlertKind, []model.Product, time.Time) error {
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, capturedMail{to: to, code: code})
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.codes)
	return m.codes[len(m.codes)-1].code
}

type fakeLookup struct {
	info *barcode.Info
	err  error
}

func (f fakeLookup) Lookup(context.Context, string) (*barcode.Info, error) {
	return f.info, f.err
}

type fakeSweeps struct {
	mu      sync.Mutex
	busy    bool
	started int
	last    *model.SweepReport
}

func (f *fakeSweeps) RunNow(context.Context, model.Trigger) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.started++
	return true
}

func (f *fakeSweeps) State() scheduler.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return scheduler.StateRunning
	}
	return scheduler.StateIdle
}

func (f *fakeSweeps) NextFire(now time.Time) time.Time { return now.Add(time.Hour) }

func (f *fakeSweeps) LastReport() (model.SweepReport, bool) {
	if f.last == nil {
		return model.SweepReport{}, false
	}
	return *f.last, true
}

type env struct {
	srv     *server.Server
	store   *storage.SQLite
	tokens  *auth.Tokens
	mailer  *fakeMailer
	sweeps  *fakeSweeps
	lookup  *fakeLookup
	noMail  bool
	options server.Options
}

type envOption func(*env)

func withAdminToken(token string) envOption {
	return func(e *env) { e.options.AdminToken = token }
}

// withoutMailer runs the server with no mail channel configured.
func withoutMailer() envOption {
	return func(e *env) { e.noMail = true }
}

func withLookup(l fakeLookup) envOption {
	return func(e *env) { e.lookup = &l }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	defaults, err := catalog.Defaults()
	require.NoError(t, err)
	_, err = store.SeedDefaultCategories(context.Background(), defaults)
	require.NoError(t, err)

	tokens, err := auth.NewTokens(auth.TokenConfig{AccessSecret: "access", RefreshSecret: "refresh"})
	require.NoError(t, err)

	e := &env{
		store:  store,
		tokens: tokens,
		mailer: &fakeMailer{},
		sweeps: &fakeSweeps{},
	}
	for _, opt := range opts {
		opt(e)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := alerting.NewSweeper(store, alerting.NewEvaluator(store), alerting.NewDispatcher(nil, nil, logger), logger)
	deps := server.Deps{
		Store:   store,
		Tokens:  tokens,
		OTPs:    auth.NewMemoryOTPStore(),
		Preview: sweeper,
		Sweeps:  e.sweeps,
	}
	if !e.noMail {
		deps.Mailer = e.mailer
	}
	if e.lookup != nil {
		deps.Barcode = e.lookup
	}
	e.srv = server.NewServer(deps, e.options, logger)
	return e
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, cookies: resp.Cookies()}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out.body), "body: %s", data)
	}
	return out
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

// newUser stores a verified user and returns it with an access token.
func (e *env) newUser(t *testing.T, email string) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	u := &model.User{
		Email:         email,
		PasswordHash:  hash,
		ShopName:      "Corner Shop",
		PhoneNumber:   "+15550100",
		EmailVerified: true,
		Preferences:   model.DefaultPreferences(),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	token, err := e.tokens.IssueAccess(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *env) defaultCategory(t *testing.T, userID string) model.Category {
	t.Helper()
	cats, err := e.store.ListCategories(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	return cats[0]
}
