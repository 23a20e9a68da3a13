package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/ogulcanaydogan/stocksync/internal/server"
	"github.com/ogulcanaydogan/stocksync/pkg/catalog"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API and the daily alert scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("no-scheduler", false, "Serve the API without the daily alert sweep")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	defaults, err := catalog.Defaults()
	if err != nil {
		return err
	}
	added, err := store.SeedDefaultCategories(cmd.Context(), defaults)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	if added > 0 {
		logger.Info("default categories seeded", "added", added)
	}

	mailer, texter, err := initChannels(cfg, logger)
	if err != nil {
		return err
	}
	sweeper := initSweeper(cfg, store, mailer, texter, logger)

	sched, err := initScheduler(cfg, sweeper, logger)
	if err != nil {
		return err
	}

	otps, closeOTPs, err := initOTPStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeOTPs()

	tokens, err := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  cfg.Auth.JWTSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return err
	}

	deps := server.Deps{
		Store:   store,
		Tokens:  tokens,
		OTPs:    otps,
		Mailer:  mailer,
		Preview: sweeper,
		Sweeps:  sched,
	}
	if bc := initBarcode(cfg, logger); bc != nil {
		deps.Barcode = bc
	}
	apiServer := server.NewServer(deps, server.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		AdminToken:   cfg.Server.AdminToken,
		SecureCookie: cfg.Server.SecureCookie,
		OTPTTL:       cfg.Auth.OTPTTL,
	}, logger)

	if !noScheduler {
		sched.Start()
		if cfg.Alerts.RunOnStart {
			sched.RunNow(context.Background(), model.TriggerStartup)
		}
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server started", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "StockSync API listening on %s\n", cfg.Server.Listen)
		errCh <- apiServer.Listen(cfg.Server.Listen)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			serveErr = fmt.Errorf("shutdown error: %w", err)
		}
	}

	// Let an in-flight sweep finish writing its flags before the store closes.
	sched.Stop()
	logger.Info("server stopped")
	return serveErr
}
