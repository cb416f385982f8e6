// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import "encoding/base64"

// DownstreamCredential is the secret the gateway presents to the wrapped
// server. A zero value means no Authorization header is injected.
type DownstreamCredential struct {
	// Scheme is "Basic" or "Bearer".
	Scheme string
	// Value is the base64 pair or the raw bearer token.
	Value string
}

// IsZero reports whether there is no credential to inject.
func (c DownstreamCredential) IsZero() bool {
	return c.Scheme == "" || c.Value == ""
}

// AuthorizationValue renders the header value for the outbound request.
func (c DownstreamCredential) AuthorizationValue() string {
	if c.IsZero() {
		return ""
	}
	return c.Scheme + " " + c.Value
}

// CredentialSource resolves the downstream credential for a request whose
// inbound proof has already been validated. Implementations must not
// perform network calls; any remote secret fetch happens once at startup.
type CredentialSource interface {
	Resolve(res Result) DownstreamCredential
}

// StaticBasicSource returns the same fixed Basic pair for every request
// regardless of caller.
type StaticBasicSource struct {
	encoded string
}

// NewStaticBasicSource encodes the downstream username/password pair once.
func NewStaticBasicSource(username, password string) *StaticBasicSource {
	return &StaticBasicSource{
		encoded: base64.StdEncoding.EncodeToString([]byte(username + ":" + password)),
	}
}

// Resolve implements CredentialSource.
func (s *StaticBasicSource) Resolve(Result) DownstreamCredential {
	return DownstreamCredential{Scheme: "Basic", Value: s.encoded}
}

// PassthroughSource forwards the caller's own bearer token unchanged. The
// downstream server, and ultimately the database, is the actual validator.
type PassthroughSource struct{}

// Resolve implements CredentialSource. Anonymous requests carry no token
// and are forwarded without an Authorization header.
func (PassthroughSource) Resolve(res Result) DownstreamCredential {
	if res.Token == "" {
		return DownstreamCredential{}
	}
	return DownstreamCredential{Scheme: "Bearer", Value: res.Token}
}
