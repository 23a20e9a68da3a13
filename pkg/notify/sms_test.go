package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSID   = "AC0123456789abcdef"
	testToken = "0123456789abcdef"
)

func TestTwilioConfig_Valid(t *testing.T) {
	tests := []struct {
		name string
		cfg  notify.TwilioConfig
		want bool
	}{
		{"valid", notify.TwilioConfig{AccountSID: testSID, AuthToken: testToken, FromNumber: "+1555"}, true},
		{"placeholder sid", notify.TwilioConfig{AccountSID: "your_sid", AuthToken: testToken, FromNumber: "+1555"}, false},
		{"short token", notify.TwilioConfig{AccountSID: testSID, AuthToken: "short", FromNumber: "+1555"}, false},
		{"no sender", notify.TwilioConfig{AccountSID: testSID, AuthToken: testToken}, false},
		{"empty", notify.TwilioConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Valid())
		})
	}

	_, err := notify.NewTwilioTexter(notify.TwilioConfig{})
	assert.ErrorIs(t, err, notify.ErrNotConfigured)
}

func TestTwilioTexter_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/"+testSID+"/Messages.json", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testSID, user)
		assert.Equal(t, testToken, pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550100", r.PostForm.Get("To"))
		assert.Equal(t, "+15550199", r.PostForm.Get("From"))
		assert.Equal(t, "hello & goodbye", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	texter, err := notify.NewTwilioTexter(notify.TwilioConfig{
		AccountSID: testSID, AuthToken: testToken, FromNumber: "+15550199", BaseURL: server.URL,
	})
	require.NoError(t, err)
	require.NoError(t, texter.SendSMS(context.Background(), "+15550100", "hello & goodbye"))
}

func TestTwilioTexter_SendSMS_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	texter, err := notify.NewTwilioTexter(notify.TwilioConfig{
		AccountSID: testSID, AuthToken: testToken, FromNumber: "+15550199", BaseURL: server.URL,
	})
	require.NoError(t, err)

	err = texter.SendSMS(context.Background(), "bogus", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid 'To' Phone Number")
	assert.Contains(t, err.Error(), "21211")
}

func TestTwilioTexter_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	texter, err := notify.NewTwilioTexter(notify.TwilioConfig{
		AccountSID: testSID, AuthToken: testToken, FromNumber: "+15550199", BaseURL: server.URL,
		RatePerSecond: 0.5,
	})
	require.NoError(t, err)

	require.NoError(t, texter.SendSMS(context.Background(), "+1", "first"))

	// The next token is two seconds away, so a short deadline cannot be met.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = texter.SendSMS(ctx, "+1", "second")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
