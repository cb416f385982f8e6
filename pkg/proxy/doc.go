// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy provides the authenticating HTTP reverse proxy that fronts
// an opaque downstream MCP server. It admits requests through the rate
// guard and method gate, validates inbound credential proofs, swaps them
// for the configured downstream credential, and relays JSON-RPC responses
// verbatim.
package proxy
