// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package gate decides, per JSON-RPC method, whether a request must carry
// proof of identity before it may be forwarded downstream.
package gate

import "encoding/json"

// openMethods lists the methods that may proceed without authentication.
// They only return static capability or discovery metadata, never data.
// Adding a method here is a data change, not a code change.
var openMethods = []string{
	"initialize",
	"notifications/initialized",
	"tools/list",
	"ping",
}

// Gate answers whether a given RPC method requires authentication. It is
// immutable after construction and safe for concurrent use.
type Gate struct {
	open map[string]struct{}
}

// New builds a Gate from the default open-method table.
func New() *Gate {
	return NewWithOpenMethods(openMethods)
}

// NewWithOpenMethods builds a Gate that admits the given methods without
// proof. Every other method, and any request whose method cannot be
// determined, requires authentication.
func NewWithOpenMethods(methods []string) *Gate {
	open := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		open[m] = struct{}{}
	}
	return &Gate{open: open}
}

// RequiresAuth reports whether the named method demands a validated
// credential. Unknown and empty method names fail closed.
func (g *Gate) RequiresAuth(method string) bool {
	if method == "" {
		return true
	}
	_, ok := g.open[method]
	return !ok
}

// MethodFromBody extracts the JSON-RPC method name from a buffered request
// body. Malformed envelopes yield an empty string, which RequiresAuth
// treats as requiring authentication.
func MethodFromBody(body []byte) string {
	var envelope struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Method
}
