// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-core-stack/mcp-auth-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/config"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/metrics"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/proxy"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/ratelimit"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/secrets"
)

// guardEvictionInterval is how often idle rate-limit buckets are dropped.
const guardEvictionInterval = time.Minute

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyAuthMode, "", "authentication mode: static-key or bearer-passthrough")
	flags.String(config.KeyListenAddr, "", "address for the gateway listener")
	flags.String(config.KeyMetricsAddr, "", "address for the metrics listener (empty disables it)")
	flags.String(config.KeyDownstreamURL, "", "absolute URL of the wrapped MCP server")
	flags.String(config.KeyKeyVaultURL, "", "Azure Key Vault URL holding the downstream credential pair")
	flags.Float64(config.KeyRateLimitPerSecond, 0, "per-IP request rate (0 disables the guard)")
	flags.Int(config.KeyRateLimitBurst, 0, "per-IP burst capacity")
	flags.Duration(config.KeyDownstreamTimeout, 0, "downstream request timeout")
	flags.String(config.KeyLogLevel, "", "log level")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.Logger = log.Level(level)

	credentials, err := buildCredentialSource(ctx, cfg)
	if err != nil {
		return err
	}

	var guard *ratelimit.Guard
	if cfg.RateLimitEnabled() {
		guard = ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}

	collector := metrics.NewCollector()

	gateway, err := proxy.New(cfg, credentials, guard, collector)
	if err != nil {
		return fmt.Errorf("construct proxy: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if guard != nil {
		go guard.Run(runCtx, guardEvictionInterval)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, collector)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("metrics server exited unexpectedly")
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      gateway.Routes(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("downstream", cfg.Downstream.String()).
			Str("auth_mode", string(cfg.AuthMode)).
			Msg("starting MCP auth gateway")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server exited unexpectedly: %w", err)
	case <-stop:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down MCP auth gateway")
	gateway.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		if closeErr := server.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics shutdown failed")
		}
	}

	log.Info().Msg("gateway stopped")
	return nil
}

// buildCredentialSource resolves the downstream credential once, before the
// listener starts. The Key Vault round trip, when configured, happens here
// and never on the request path.
func buildCredentialSource(ctx context.Context, cfg config.Config) (auth.CredentialSource, error) {
	switch cfg.AuthMode {
	case config.ModeStaticKey:
		username, password := cfg.DownstreamUsername, cfg.DownstreamPassword
		if cfg.KeyVaultURL != "" {
			vault, err := secrets.NewKeyVault(cfg.KeyVaultURL)
			if err != nil {
				return nil, fmt.Errorf("key vault: %w", err)
			}
			username, password, err = secrets.FetchBasicPair(ctx, vault, cfg.KeyVaultUsernameSecret, cfg.KeyVaultPasswordSecret)
			if err != nil {
				return nil, fmt.Errorf("fetch downstream credential: %w", err)
			}
			log.Info().Str("vault", cfg.KeyVaultURL).Msg("downstream credential loaded from key vault")
		}
		return auth.NewStaticBasicSource(username, password), nil
	case config.ModeBearerPassthrough:
		return auth.PassthroughSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
