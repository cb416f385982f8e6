// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package cmd wires the gateway's command-line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcp-auth-gateway",
	Short: "Authenticating reverse proxy for an MCP server",
	Long: `mcp-auth-gateway fronts an opaque MCP server with an authentication
boundary: callers present a static API key or a bearer token, and the
gateway injects the downstream credential the wrapped server expects.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
