// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package config assembles the gateway's runtime configuration from
// environment variables and command-line flags into a single immutable
// struct handed to each component at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AuthMode selects how inbound callers prove their identity and which
// downstream credential the gateway injects.
type AuthMode string

const (
	// ModeStaticKey accepts a shared secret from callers and injects a
	// fixed Basic-Auth pair on every forwarded request.
	ModeStaticKey AuthMode = "static-key"
	// ModeBearerPassthrough forwards the caller's bearer token verbatim,
	// deferring validation to the downstream server.
	ModeBearerPassthrough AuthMode = "bearer-passthrough"
)

// Viper keys. The env prefix is MCP_, so "auth-mode" maps to MCP_AUTH_MODE.
const (
	KeyAuthMode               = "auth-mode"
	KeyListenAddr             = "listen-addr"
	KeyMetricsAddr            = "metrics-addr"
	KeyDownstreamURL          = "downstream-url"
	KeyStaticAPIKey           = "static-api-key"
	KeyDownstreamUsername     = "downstream-username"
	KeyDownstreamPassword     = "downstream-password"
	KeyKeyVaultURL            = "keyvault-url"
	KeyKeyVaultUsernameSecret = "keyvault-username-secret"
	KeyKeyVaultPasswordSecret = "keyvault-password-secret"
	KeyRateLimitPerSecond     = "rate-limit-per-second"
	KeyRateLimitBurst         = "rate-limit-burst"
	KeyDownstreamTimeout      = "downstream-timeout"
	KeyDownstreamInsecure     = "downstream-insecure"
	KeyServerReadTimeout      = "server-read-timeout"
	KeyServerWriteTimeout     = "server-write-timeout"
	KeyServerIdleTimeout      = "server-idle-timeout"
	KeyGracefulShutdown       = "graceful-shutdown"
	KeyLogLevel               = "log-level"
)

const (
	defaultListenAddr             = "127.0.0.1:8080"
	defaultMetricsAddr            = ":9090"
	defaultKeyVaultUsernameSecret = "mcp-username"
	defaultKeyVaultPasswordSecret = "mcp-password"
	defaultRateLimitPerSecond     = 10.0
	defaultRateLimitBurst         = 20
	defaultDownstreamTimeout      = 60 * time.Second
	defaultServerReadTimeout      = 15 * time.Second
	defaultServerWriteTimeout     = 60 * time.Second
	defaultServerIdleTimeout      = 120 * time.Second
	defaultGracefulShutdown       = 10 * time.Second
	defaultLogLevel               = "info"
)

// Config captures runtime settings for the gateway.
type Config struct {
	AuthMode               AuthMode
	ListenAddr             string
	MetricsAddr            string
	Downstream             *url.URL
	StaticAPIKey           string
	DownstreamUsername     string
	DownstreamPassword     string
	KeyVaultURL            string
	KeyVaultUsernameSecret string
	KeyVaultPasswordSecret string
	RateLimitPerSecond     float64
	RateLimitBurst         int
	DownstreamTimeout      time.Duration
	InsecureSkipVerify     bool
	ServerReadTimeout      time.Duration
	ServerWriteTimeout     time.Duration
	ServerIdleTimeout      time.Duration
	GracefulShutdown       time.Duration
	LogLevel               string
}

// NewViper constructs a viper instance with the gateway's defaults and
// MCP_-prefixed environment bindings registered. Callers may additionally
// bind command-line flags before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyListenAddr, defaultListenAddr)
	v.SetDefault(KeyMetricsAddr, defaultMetricsAddr)
	v.SetDefault(KeyKeyVaultUsernameSecret, defaultKeyVaultUsernameSecret)
	v.SetDefault(KeyKeyVaultPasswordSecret, defaultKeyVaultPasswordSecret)
	v.SetDefault(KeyRateLimitPerSecond, defaultRateLimitPerSecond)
	v.SetDefault(KeyRateLimitBurst, defaultRateLimitBurst)
	v.SetDefault(KeyDownstreamTimeout, defaultDownstreamTimeout)
	v.SetDefault(KeyDownstreamInsecure, false)
	v.SetDefault(KeyServerReadTimeout, defaultServerReadTimeout)
	v.SetDefault(KeyServerWriteTimeout, defaultServerWriteTimeout)
	v.SetDefault(KeyServerIdleTimeout, defaultServerIdleTimeout)
	v.SetDefault(KeyGracefulShutdown, defaultGracefulShutdown)
	v.SetDefault(KeyLogLevel, defaultLogLevel)

	return v
}

// Load reads configuration from the provided viper instance and validates
// required values.
func Load(v *viper.Viper) (Config, error) {
	downstreamRaw := strings.TrimSpace(v.GetString(KeyDownstreamURL))
	if downstreamRaw == "" {
		return Config{}, errors.New("MCP_DOWNSTREAM_URL is required")
	}

	downstream, err := url.Parse(downstreamRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MCP_DOWNSTREAM_URL: %w", err)
	}
	if !downstream.IsAbs() {
		return Config{}, errors.New("MCP_DOWNSTREAM_URL must be absolute (scheme://host)")
	}

	cfg := Config{
		AuthMode:               AuthMode(strings.TrimSpace(v.GetString(KeyAuthMode))),
		ListenAddr:             v.GetString(KeyListenAddr),
		MetricsAddr:            v.GetString(KeyMetricsAddr),
		Downstream:             downstream,
		StaticAPIKey:           strings.TrimSpace(v.GetString(KeyStaticAPIKey)),
		DownstreamUsername:     v.GetString(KeyDownstreamUsername),
		DownstreamPassword:     v.GetString(KeyDownstreamPassword),
		KeyVaultURL:            strings.TrimSpace(v.GetString(KeyKeyVaultURL)),
		KeyVaultUsernameSecret: v.GetString(KeyKeyVaultUsernameSecret),
		KeyVaultPasswordSecret: v.GetString(KeyKeyVaultPasswordSecret),
		RateLimitPerSecond:     v.GetFloat64(KeyRateLimitPerSecond),
		RateLimitBurst:         v.GetInt(KeyRateLimitBurst),
		DownstreamTimeout:      v.GetDuration(KeyDownstreamTimeout),
		InsecureSkipVerify:     v.GetBool(KeyDownstreamInsecure),
		ServerReadTimeout:      v.GetDuration(KeyServerReadTimeout),
		ServerWriteTimeout:     v.GetDuration(KeyServerWriteTimeout),
		ServerIdleTimeout:      v.GetDuration(KeyServerIdleTimeout),
		GracefulShutdown:       v.GetDuration(KeyGracefulShutdown),
		LogLevel:               strings.ToLower(v.GetString(KeyLogLevel)),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.AuthMode {
	case ModeStaticKey:
		if c.StaticAPIKey == "" {
			return errors.New("MCP_STATIC_API_KEY is required in static-key mode")
		}
		if c.KeyVaultURL == "" && (c.DownstreamUsername == "" || c.DownstreamPassword == "") {
			return errors.New("static-key mode requires a downstream credential pair or MCP_KEYVAULT_URL")
		}
	case ModeBearerPassthrough:
		if c.StaticAPIKey != "" {
			return errors.New("MCP_STATIC_API_KEY must not be set in bearer-passthrough mode")
		}
	case "":
		return errors.New("MCP_AUTH_MODE is required (static-key or bearer-passthrough)")
	default:
		return fmt.Errorf("unsupported MCP_AUTH_MODE %q", c.AuthMode)
	}

	if c.RateLimitPerSecond < 0 {
		return errors.New("MCP_RATE_LIMIT_PER_SECOND must not be negative")
	}
	if c.RateLimitPerSecond > 0 && c.RateLimitBurst < 1 {
		return errors.New("MCP_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	return nil
}

// RateLimitEnabled reports whether the rate guard should be installed.
func (c Config) RateLimitEnabled() bool {
	return c.RateLimitPerSecond > 0
}
