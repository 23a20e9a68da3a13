// Package auth provides password hashing, session tokens and one-time
// verification codes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	bcryptCost = 10
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword returns ErrInvalidCredentials when password does not match hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Claims carries the user id in the "id" claim.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenConfig holds the signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now overrides the clock used for issuing and validating. Defaults to time.Now.
	Now func() time.Time
}

// Tokens issues and verifies HS256 access and refresh tokens.
type Tokens struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokens creates a token manager. Both secrets are required.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("jwt secrets are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tokens{cfg: cfg, now: now}, nil
}

// RefreshTTL is how long refresh tokens stay valid.
func (t *Tokens) RefreshTTL() time.Duration { return t.cfg.RefreshTTL }

func (t *Tokens) IssueAccess(userID string) (string, error) {
	return t.issue(userID, t.cfg.AccessSecret, t.cfg.AccessTTL)
}

func (t *Tokens) IssueRefresh(userID string) (string, error) {
	return t.issue(userID, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
}

// ParseAccess returns the user id of a valid access token.
func (t *Tokens) ParseAccess(token string) (string, error) {
	return t.parse(token, t.cfg.AccessSecret)
}

// ParseRefresh returns the user id of a valid refresh token.
func (t *Tokens) ParseRefresh(token string) (string, error) {
	return t.parse(token, t.cfg.RefreshSecret)
}

func (t *Tokens) issue(userID, secret string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) parse(token, secret string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
