package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOTPTTL is how long a verification code stays valid.
const DefaultOTPTTL = 10 * time.Minute

var (
	ErrOTPNotFound = errors.New("otp expired or not found")
	ErrOTPMismatch = errors.New("invalid otp")
)

// GenerateOTP returns a random six-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// OTPStore keeps verification codes keyed by email until they expire.
type OTPStore interface {
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	// Verify consumes the code on a match. A mismatch leaves it in place.
	Verify(ctx context.Context, email, code string) error
}

func otpKey(email string) string {
	return "stocksync:otp:" + strings.ToLower(strings.TrimSpace(email))
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RedisOTPStore stores codes in Redis with a key TTL.
type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (s *RedisOTPStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) Verify(ctx context.Context, email, code string) error {
	key := otpKey(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPNotFound
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if !codesEqual(stored, code) {
		return ErrOTPMismatch
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// MemoryOTPStore is an in-process OTPStore for single-instance deployments.
type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]memoryOTP
	now   func() time.Time
}

type memoryOTP struct {
	code      string
	expiresAt time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]memoryOTP), now: time.Now}
}

// WithClock replaces the store's time source.
func (s *MemoryOTPStore) WithClock(now func() time.Time) *MemoryOTPStore {
	s.now = now
	return s
}

func (s *MemoryOTPStore) Put(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Drop expired entries so abandoned signups do not accumulate.
	for k, v := range s.codes {
		if !now.Before(v.expiresAt) {
			delete(s.codes, k)
		}
	}
	s.codes[otpKey(email)] = memoryOTP{code: code, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) Verify(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey(email)
	v, ok := s.codes[key]
	if !ok {
		return ErrOTPNotFound
	}
	if !s.now().Before(v.expiresAt) {
		delete(s.codes, key)
		return ErrOTPNotFound
	}
	if !codesEqual(v.code, code) {
		return ErrOTPMismatch
	}
	delete(s.codes, key)
	return nil
}
