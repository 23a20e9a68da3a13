package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/ogulcanaydogan/stocksync/internal/config"
	"github.com/ogulcanaydogan/stocksync/pkg/alerting"
	"github.com/ogulcanaydogan/stocksync/pkg/barcode"
	"github.com/ogulcanaydogan/stocksync/pkg/notify"
	"github.com/ogulcanaydogan/stocksync/pkg/scheduler"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stocksync",
	Short: "StockSync - inventory tracking with low-stock and expiry alerts",
	Long: `StockSync tracks shop inventory, serves the REST API used by the web client,
and runs a daily sweep that emails and texts owners about low-stock and
soon-to-expire products.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.stocksync/config.yaml)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initChannels builds the optional delivery channels. An unconfigured channel
// comes back as a nil interface and is reported once here.
func initChannels(cfg *config.Config, logger *slog.Logger) (notify.Mailer, notify.Texter, error) {
	var (
		mailer notify.Mailer
		texter notify.Texter
	)

	m, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.User,
		Password:  cfg.Email.Password,
		FromName:  cfg.Email.FromName,
		ClientURL: cfg.Server.ClientURL,
	})
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		logger.Warn("email channel not configured, email alerts will be skipped")
	case err != nil:
		return nil, nil, fmt.Errorf("init email channel: %w", err)
	default:
		mailer = m
	}

	t, err := notify.NewTwilioTexter(notify.TwilioConfig{
		AccountSID:    cfg.SMS.AccountSID,
		AuthToken:     cfg.SMS.AuthToken,
		FromNumber:    cfg.SMS.FromNumber,
		BaseURL:       cfg.SMS.BaseURL,
		RatePerSecond: cfg.SMS.RatePerSecond,
	})
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		logger.Warn("sms channel not configured, sms alerts will be skipped")
	case err != nil:
		return nil, nil, fmt.Errorf("init sms channel: %w", err)
	default:
		texter = t
	}

	return mailer, texter, nil
}

// initReporters creates sweep report sinks from config.
func initReporters(cfg *config.Config) []notify.Reporter {
	var reporters []notify.Reporter

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		reporters = append(reporters, notify.NewWebhookReporter(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		reporters = append(reporters, notify.NewSlackReporter(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	return reporters
}

// initSweeper creates a fully wired alert sweeper.
func initSweeper(cfg *config.Config, store *storage.SQLite, mailer notify.Mailer, texter notify.Texter, logger *slog.Logger) *alerting.Sweeper {
	evaluator := alerting.NewEvaluator(store, alerting.WithSuppressRepeats(cfg.Alerts.SuppressRepeats))
	dispatcher := alerting.NewDispatcher(mailer, texter, logger, alerting.WithSendTimeout(cfg.Alerts.SendTimeout))
	return alerting.NewSweeper(store, evaluator, dispatcher, logger,
		alerting.WithConcurrency(cfg.Alerts.Concurrency),
		alerting.WithReporters(initReporters(cfg)...),
	)
}

// initScheduler wraps the sweeper in the scheduler that owns the running guard.
func initScheduler(cfg *config.Config, sweeper *alerting.Sweeper, logger *slog.Logger) (*scheduler.Scheduler, error) {
	loc, err := cfg.Alerts.Location()
	if err != nil {
		return nil, err
	}
	return scheduler.New(sweeper, cfg.Alerts.DailyFireTime, logger, scheduler.WithLocation(loc))
}

// initOTPStore keeps verification codes in Redis when configured, otherwise
// in process memory. The returned closer releases the Redis client.
func initOTPStore(cfg *config.Config, logger *slog.Logger) (auth.OTPStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, keeping verification codes in memory")
		return auth.NewMemoryOTPStore(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return auth.NewRedisOTPStore(client), client.Close, nil
}

// initBarcode creates the barcode lookup client, or nil when no API key is set.
func initBarcode(cfg *config.Config, logger *slog.Logger) *barcode.Client {
	client, err := barcode.NewClient(barcode.Config{APIURL: cfg.Barcode.APIURL, APIKey: cfg.Barcode.APIKey})
	if err != nil {
		logger.Info("barcode api not configured, lookups use inventory only")
		return nil
	}
	return client
}
