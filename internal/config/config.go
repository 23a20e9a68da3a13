package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ogulcanaydogan/stocksync/pkg/scheduler"
	"github.com/spf13/viper"
)

// Config holds all StockSync configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Email   EmailConfig   `mapstructure:"email"`
	SMS     SMSConfig     `mapstructure:"sms"`
	Barcode BarcodeConfig `mapstructure:"barcode"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path           string `mapstructure:"path"`
	CategoriesFile string `mapstructure:"categories_file"`
}

// ServerConfig defines the REST API listener.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
	ClientURL    string        `mapstructure:"client_url"`
	// AdminToken guards the manual sweep endpoints. Empty disables them.
	AdminToken   string `mapstructure:"admin_token"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
}

// AuthConfig defines token signing.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	OTPTTL        time.Duration `mapstructure:"otp_ttl"`
}

// RedisConfig defines the OTP store. An empty Addr keeps codes in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EmailConfig defines SMTP settings.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	FromName string `mapstructure:"from_name"`
}

// SMSConfig defines Twilio settings.
type SMSConfig struct {
	AccountSID    string  `mapstructure:"account_sid"`
	AuthToken     string  `mapstructure:"auth_token"`
	FromNumber    string  `mapstructure:"from_number"`
	BaseURL       string  `mapstructure:"base_url"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// BarcodeConfig defines the external barcode API.
type BarcodeConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

// AlertsConfig defines the alert sweep.
type AlertsConfig struct {
	DailyFireTime   string        `mapstructure:"daily_fire_time"`
	Timezone        string        `mapstructure:"timezone"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
	SuppressRepeats bool          `mapstructure:"suppress_repeats"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	Webhook         WebhookConfig `mapstructure:"webhook"`
	Slack           SlackConfig   `mapstructure:"slack"`
}

// SlackConfig defines the Slack sweep summary.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines the sweep report webhook.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Location resolves the configured alert timezone. Empty means local time.
func (a AlertsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from a .env file, the config file and environment
// variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".stocksync"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults. Every key needs one so environment overrides are picked up.
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".stocksync", "stocksync.db"))
	v.SetDefault("storage.categories_file", "")
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.body_limit", 1024*1024) // 1 MB
	v.SetDefault("server.client_url", "http://localhost:3000")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.otp_ttl", "10m")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.user", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "StockSync")
	v.SetDefault("sms.account_sid", "")
	v.SetDefault("sms.auth_token", "")
	v.SetDefault("sms.from_number", "")
	v.SetDefault("sms.base_url", "")
	v.SetDefault("sms.rate_per_second", 1.0)
	v.SetDefault("barcode.api_url", "https://api.barcodelookup.com/v3/products")
	v.SetDefault("barcode.api_key", "")
	v.SetDefault("alerts.daily_fire_time", scheduler.DefaultFireTime)
	v.SetDefault("alerts.timezone", "")
	v.SetDefault("alerts.send_timeout", "10s")
	v.SetDefault("alerts.concurrency", 1)
	v.SetDefault("alerts.suppress_repeats", false)
	v.SetDefault("alerts.run_on_start", false)
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("STOCKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := scheduler.ParseFireTime(c.Alerts.DailyFireTime); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Alerts.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Alerts.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("alerts.concurrency must be at least 1, got %d", c.Alerts.Concurrency))
	}
	if c.Alerts.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("alerts.send_timeout must be positive"))
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("alerts.webhook.url is required when the webhook is enabled"))
	}
	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("alerts.slack.webhook_url is required when slack is enabled"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings only the API server needs.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" || c.Auth.RefreshSecret == "" {
		return fmt.Errorf("auth.jwt_secret and auth.refresh_secret are required")
	}
	return nil
}
