package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTwilioURL is the Twilio REST API base.
const DefaultTwilioURL = "https://api.twilio.com"

// TwilioConfig holds Twilio account settings.
type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	FromNumber    string
	BaseURL       string
	RatePerSecond float64
}

// Valid reports whether the credentials look real rather than placeholders.
func (c TwilioConfig) Valid() bool {
	return strings.HasPrefix(c.AccountSID, "AC") && len(c.AuthToken) > 10 && c.FromNumber != ""
}

// TwilioTexter sends SMS through the Twilio Messages API.
type TwilioTexter struct {
	sid     string
	token   string
	from    string
	baseURL string
	limiter *rate.Limiter
	client  *http.Client
}

// NewTwilioTexter creates an SMS texter. It returns ErrNotConfigured when the
// credentials are missing or are placeholders.
func NewTwilioTexter(cfg TwilioConfig) (*TwilioTexter, error) {
	if !cfg.Valid() {
		return nil, ErrNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTwilioURL
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &TwilioTexter{
		sid:     cfg.AccountSID,
		token:   cfg.AuthToken,
		from:    cfg.FromNumber,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (t *TwilioTexter) SendSMS(ctx context.Context, phone, message string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for sms rate limit: %w", err)
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", t.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.SetBasicAuth(t.sid, t.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio returned status %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return nil
}
