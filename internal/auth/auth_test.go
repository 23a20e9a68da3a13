package auth_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.NoError(t, auth.CheckPassword(hash, "s3cret!"))
	assert.ErrorIs(t, auth.CheckPassword(hash, "wrong"), auth.ErrInvalidCredentials)
	assert.ErrorIs(t, auth.CheckPassword("not-a-hash", "s3cret!"), auth.ErrInvalidCredentials)
}

func newTokens(t *testing.T, now *time.Time) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Now:           func() time.Time { return *now },
	})
	require.NoError(t, err)
	return tokens
}

func TestTokens_RoundTrip(t *testing.T) {
	now := time.Now()
	tokens := newTokens(t, &now)

	access, err := tokens.IssueAccess("user-1")
	require.NoError(t, err)
	id, err := tokens.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	refresh, err := tokens.IssueRefresh("user-1")
	require.NoError(t, err)
	id, err = tokens.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	// Secrets are not interchangeable.
	_, err = tokens.ParseRefresh(access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = tokens.ParseAccess(refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokens_Expiry(t *testing.T) {
	now := time.Now()
	tokens := newTokens(t, &now)

	access, err := tokens.IssueAccess("user-1")
	require.NoError(t, err)
	refresh, err := tokens.IssueRefresh("user-1")
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = tokens.ParseAccess(access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = tokens.ParseRefresh(refresh)
	assert.NoError(t, err)

	now = now.Add(7 * 24 * time.Hour)
	_, err = tokens.ParseRefresh(refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokens_Garbage(t *testing.T) {
	now := time.Now()
	_, err := newTokens(t, &now).ParseAccess("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = auth.NewTokens(auth.TokenConfig{AccessSecret: "x"})
	assert.Error(t, err)
}
