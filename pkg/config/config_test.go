// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticViper() *viper.Viper {
	v := NewViper()
	v.Set(KeyAuthMode, "static-key")
	v.Set(KeyDownstreamURL, "https://mcp.internal:8000")
	v.Set(KeyStaticAPIKey, "sekret")
	v.Set(KeyDownstreamUsername, "neo4j")
	v.Set(KeyDownstreamPassword, "pw")
	return v
}

func TestLoadStaticKeyMode(t *testing.T) {
	cfg, err := Load(staticViper())
	require.NoError(t, err)

	assert.Equal(t, ModeStaticKey, cfg.AuthMode)
	assert.Equal(t, "https://mcp.internal:8000", cfg.Downstream.String())
	assert.Equal(t, "sekret", cfg.StaticAPIKey)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 10.0, cfg.RateLimitPerSecond)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 60*time.Second, cfg.DownstreamTimeout)
	assert.Equal(t, 15*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RateLimitEnabled())
}

func TestLoadBearerPassthroughMode(t *testing.T) {
	v := NewViper()
	v.Set(KeyAuthMode, "bearer-passthrough")
	v.Set(KeyDownstreamURL, "https://mcp.internal:8000")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ModeBearerPassthrough, cfg.AuthMode)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MCP_AUTH_MODE", "static-key")
	t.Setenv("MCP_DOWNSTREAM_URL", "http://127.0.0.1:8000")
	t.Setenv("MCP_STATIC_API_KEY", "env-key")
	t.Setenv("MCP_DOWNSTREAM_USERNAME", "u")
	t.Setenv("MCP_DOWNSTREAM_PASSWORD", "p")
	t.Setenv("MCP_RATE_LIMIT_PER_SECOND", "25")
	t.Setenv("MCP_LOG_LEVEL", "DEBUG")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.StaticAPIKey)
	assert.Equal(t, 25.0, cfg.RateLimitPerSecond)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadValidation(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"missing downstream url", func(v *viper.Viper) { v.Set(KeyDownstreamURL, "") }},
		{"relative downstream url", func(v *viper.Viper) { v.Set(KeyDownstreamURL, "mcp.internal/path") }},
		{"missing auth mode", func(v *viper.Viper) { v.Set(KeyAuthMode, "") }},
		{"unknown auth mode", func(v *viper.Viper) { v.Set(KeyAuthMode, "mutual-tls") }},
		{"static mode without key", func(v *viper.Viper) { v.Set(KeyStaticAPIKey, "") }},
		{"static mode without downstream pair", func(v *viper.Viper) {
			v.Set(KeyDownstreamUsername, "")
			v.Set(KeyDownstreamPassword, "")
		}},
		{"negative rate", func(v *viper.Viper) { v.Set(KeyRateLimitPerSecond, -1) }},
		{"zero burst with rate", func(v *viper.Viper) { v.Set(KeyRateLimitBurst, 0) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := staticViper()
			tc.mutate(v)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestStaticModeAllowsVaultInsteadOfPair(t *testing.T) {
	v := staticViper()
	v.Set(KeyDownstreamUsername, "")
	v.Set(KeyDownstreamPassword, "")
	v.Set(KeyKeyVaultURL, "https://vault.vault.azure.net")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "mcp-username", cfg.KeyVaultUsernameSecret)
	assert.Equal(t, "mcp-password", cfg.KeyVaultPasswordSecret)
}

func TestPassthroughRejectsStaticKey(t *testing.T) {
	v := NewViper()
	v.Set(KeyAuthMode, "bearer-passthrough")
	v.Set(KeyDownstreamURL, "https://mcp.internal:8000")
	v.Set(KeyStaticAPIKey, "should-not-be-here")

	_, err := Load(v)
	assert.Error(t, err)
}

func TestRateLimitDisabled(t *testing.T) {
	v := staticViper()
	v.Set(KeyRateLimitPerSecond, 0)
	v.Set(KeyRateLimitBurst, 0)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.False(t, cfg.RateLimitEnabled())
}
