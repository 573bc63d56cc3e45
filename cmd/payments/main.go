// Package main provides the payment endpoints entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/api/payments"
	"github.com/osa030/melodify/internal/app/checkout"
	"github.com/osa030/melodify/internal/infra/backend"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/gotrue"
	"github.com/osa030/melodify/internal/infra/logger"
	"github.com/osa030/melodify/internal/infra/stripe"
)

var (
	app        = kingpin.New("melodify-payments", "Melodify checkout and webhook endpoints")
	configPath = app.Flag("config", "Path to config file").Default("config/melodify.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if err := cfg.ValidatePayments(); err != nil {
		zlog.Fatal().Msgf("Invalid payments config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Payments error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Purchases are written with service credentials.
	b, err := backend.Open(ctx, cfg, cfg.Supabase.ServiceRoleKey)
	if err != nil {
		return errors.Wrap(err, "failed to open backend")
	}
	defer b.Close()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	gateway, err := stripe.New(stripe.Config{
		SecretKey:     cfg.Payments.StripeSecretKey,
		WebhookSecret: cfg.Payments.WebhookSecret,
		Currency:      cfg.Payments.Currency,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create stripe gateway")
	}

	var publisher checkout.Publisher
	if events := b.Events(); events != nil {
		publisher = events
	}

	svc := checkout.NewService(b.Catalog, verifier, gateway, publisher, checkout.Config{
		Description: cfg.Payments.ProductDescription,
		SiteURL:     cfg.Payments.SiteURL,
	})

	server := &http.Server{
		Addr:              cfg.Payments.Addr,
		Handler:           payments.NewHandler(svc, cfg.Payments.AllowedOrigin).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting payments server: addr=%s webhook_signing=%t", cfg.Payments.Addr, cfg.Payments.WebhookSecret != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Payments server stopped")
	return nil
}

// newVerifier verifies bearer tokens locally when the JWT secret is known,
// otherwise against the identity service.
func newVerifier(cfg *config.Config) (checkout.Verifier, error) {
	if cfg.Supabase.JWTSecret != "" {
		return gotrue.NewVerifier(cfg.Supabase.JWTSecret)
	}
	client, err := gotrue.New(gotrue.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.AnonKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create identity client")
	}
	return client, nil
}
