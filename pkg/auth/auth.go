// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package auth validates inbound credential proofs and resolves the
// downstream credential injected on forwarded requests.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Header names recognized for inbound proofs.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"

	bearerPrefix = "Bearer "
)

// ErrUnauthorized is returned for every authentication failure. Callers
// must map it to a uniform 401 without distinguishing a missing header
// from a bad value.
var ErrUnauthorized = errors.New("unauthorized")

// Identity names the authenticated principal class. The gateway never
// resolves individual users; the downstream server does that.
type Identity string

const (
	IdentityAnonymous       Identity = "anonymous"
	IdentityStaticKeyHolder Identity = "static-key-holder"
	IdentityBearerHolder    Identity = "bearer-holder"
)

// Proof is the credential extracted from an inbound request. It lives only
// for the duration of the request and is never persisted or logged.
type Proof struct {
	// Scheme is the header scheme the token arrived with.
	Scheme string
	// Token is the raw credential value.
	Token string
}

// Result carries the outcome of inbound authentication.
type Result struct {
	Identity Identity
	// Token is the inbound bearer token when one was presented; used by
	// the pass-through credential source.
	Token string
}

// Authenticator validates an inbound request's proof of identity.
// required reports whether the method gate demands proof for this request.
type Authenticator interface {
	Authenticate(r *http.Request, required bool) (Result, error)
}

// ExtractProof pulls the credential proof from the request headers,
// preferring Authorization over X-API-Key.
func ExtractProof(r *http.Request) Proof {
	if raw := r.Header.Get(HeaderAuthorization); raw != "" {
		if token, ok := strings.CutPrefix(raw, bearerPrefix); ok {
			return Proof{Scheme: "Bearer", Token: strings.TrimSpace(token)}
		}
		// Unrecognized Authorization scheme; keep the raw value so a
		// comparison still fails closed rather than falling through to
		// anonymous.
		return Proof{Scheme: "unknown", Token: raw}
	}
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return Proof{Scheme: HeaderAPIKey, Token: key}
	}
	return Proof{}
}

// StaticKey authenticates callers against a single shared secret using a
// constant-time comparison.
type StaticKey struct {
	key []byte
}

// NewStaticKey constructs a StaticKey authenticator for the given secret.
func NewStaticKey(key string) *StaticKey {
	return &StaticKey{key: []byte(key)}
}

// Authenticate implements Authenticator. A request without any proof is
// admitted as anonymous when the method gate does not require one; any
// presented proof must match the configured secret exactly.
func (s *StaticKey) Authenticate(r *http.Request, required bool) (Result, error) {
	proof := ExtractProof(r)
	if proof.Token == "" {
		if required {
			return Result{}, ErrUnauthorized
		}
		return Result{Identity: IdentityAnonymous}, nil
	}

	if subtle.ConstantTimeCompare([]byte(proof.Token), s.key) != 1 {
		return Result{}, ErrUnauthorized
	}

	return Result{Identity: IdentityStaticKeyHolder}, nil
}

// Passthrough admits any well-formed bearer token without validating it.
// The gateway is not the token's audience; signature and expiry checks
// happen at the downstream server's own OIDC verification.
type Passthrough struct{}

// Authenticate implements Authenticator. The only local check is that the
// Authorization header, when present, is a well-formed non-empty bearer.
func (Passthrough) Authenticate(r *http.Request, required bool) (Result, error) {
	raw := r.Header.Get(HeaderAuthorization)
	if raw == "" {
		if required {
			return Result{}, ErrUnauthorized
		}
		return Result{Identity: IdentityAnonymous}, nil
	}

	token, ok := strings.CutPrefix(raw, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return Result{}, ErrUnauthorized
	}

	return Result{Identity: IdentityBearerHolder, Token: token}, nil
}
