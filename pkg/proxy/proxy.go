// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-auth-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/config"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/gate"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/metrics"
	"github.com/go-core-stack/mcp-auth-gateway/pkg/ratelimit"
)

// proxyPath is the single inbound path the gateway accepts for proxied
// traffic. Everything else is rejected before the forwarder runs.
const proxyPath = "/mcp"

// hopHeaders lists standard hop-by-hop headers that must be stripped before a
// request is proxied so the downstream connection semantics remain correct.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Proxy authenticates inbound MCP requests, swaps the caller's proof for
// the configured downstream credential, and relays responses verbatim.
type Proxy struct {
	// cfg keeps runtime knobs such as the downstream URL and timeouts.
	cfg config.Config
	// client performs outbound HTTP requests with tuned transport settings.
	client *http.Client
	// authenticator validates inbound credential proofs.
	authenticator auth.Authenticator
	// credentials resolves the downstream credential after validation.
	credentials auth.CredentialSource
	// gate decides per RPC method whether proof is required.
	gate *gate.Gate
	// guard sheds abusive traffic before authentication; nil disables it.
	guard *ratelimit.Guard
	// collector records request outcomes and downstream latency.
	collector *metrics.Collector
	// logger emits structured logs for observability.
	logger zerolog.Logger
	// baseURL is the parsed downstream address.
	baseURL *url.URL
	// ready gates the readiness probe during graceful shutdown.
	ready atomic.Bool
}

// New constructs a Proxy backed by an http.Client configured with sensible
// connection pooling defaults and the provided runtime configuration. The
// credential source must match the configured auth mode; it is resolved by
// the caller so any secret-store fetch stays off the request path.
func New(cfg config.Config, credentials auth.CredentialSource, guard *ratelimit.Guard, collector *metrics.Collector) (*Proxy, error) {
	if credentials == nil {
		return nil, errors.New("credential source is required")
	}
	if collector == nil {
		return nil, errors.New("metrics collector is required")
	}

	var authenticator auth.Authenticator
	switch cfg.AuthMode {
	case config.ModeStaticKey:
		authenticator = auth.NewStaticKey(cfg.StaticAPIKey)
	case config.ModeBearerPassthrough:
		authenticator = auth.Passthrough{}
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}

	// Build a transport that honours system proxies and keeps connections warm.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, // nolint:gosec -- opt-in for development scenarios
		},
	}

	p := &Proxy{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.DownstreamTimeout,
			Transport: transport,
		},
		authenticator: authenticator,
		credentials:   credentials,
		gate:          gate.New(),
		guard:         guard,
		collector:     collector,
		logger:        log.With().Str("component", "proxy").Logger(),
		baseURL:       cloneURL(cfg.Downstream),
	}
	p.ready.Store(true)

	return p, nil
}

// SetReady flips the readiness probe, used to drain traffic during
// graceful shutdown.
func (p *Proxy) SetReady(ready bool) {
	p.ready.Store(ready)
}

// Routes builds the gateway's HTTP surface: the proxied endpoint, the
// probe endpoints, and a 404 for every other path.
func (p *Proxy) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(p.accessLog)

	r.Get("/healthz", p.handleHealthz)
	r.Get("/readyz", p.handleReadyz)
	r.Post(proxyPath, p.handleMCP)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r
}

// handleMCP runs the request pipeline: rate guard, method gate, inbound
// authentication, credential resolution, then the downstream round trip.
func (p *Proxy) handleMCP(w http.ResponseWriter, r *http.Request) {
	clientIP := clientAddr(r)
	event := p.logger.With().
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("remote_addr", clientIP).
		Logger()

	if p.guard != nil && !p.guard.Admit(clientIP) {
		p.collector.ObserveRateLimited()
		p.finish(w, event, http.StatusTooManyRequests, "rate_limited")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.finish(w, event, http.StatusBadRequest, "bad_request")
		return
	}
	defer func() {
		if closeErr := r.Body.Close(); closeErr != nil {
			event.Error().Err(closeErr).Msg("close request body failed")
		}
	}()

	method := gate.MethodFromBody(body)
	event = event.With().Str("rpc_method", method).Logger()

	required := p.gate.RequiresAuth(method)

	res, err := p.authenticator.Authenticate(r, required)
	if err != nil {
		// Uniform rejection: never reveal whether the proof was missing
		// or merely wrong.
		p.collector.ObserveAuthFailure()
		p.finish(w, event, http.StatusUnauthorized, "unauthorized")
		return
	}
	event = event.With().Str("identity", string(res.Identity)).Logger()

	credential := p.credentials.Resolve(res)

	start := time.Now()
	resp, err := p.forward(r, body, credential)
	if err != nil {
		status := http.StatusBadGateway
		outcome := "bad_gateway"
		var httpErr *httpError
		if errors.As(err, &httpErr) {
			status = httpErr.Status
		}
		if status == http.StatusGatewayTimeout {
			outcome = "gateway_timeout"
		}
		event.Error().Err(err).Dur("duration", time.Since(start)).Msg("downstream request failed")
		p.finish(w, event, status, outcome)
		return
	}
	p.collector.ObserveUpstream(time.Since(start))

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			event.Error().Err(closeErr).Msg("close downstream response body failed")
		}
	}()

	cleanHopHeaders(resp.Header)
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, copyErr := io.Copy(w, resp.Body); copyErr != nil {
		event.Error().Err(copyErr).Msg("stream response failed")
		return
	}

	p.collector.ObserveRequest(resp.StatusCode, "proxied")
	event.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request proxied")
}

// forward builds the outbound request with the resolved downstream
// credential attached and performs the round trip. Timeouts map to 504 and
// connectivity failures to 502; nothing is retried since MCP calls may not
// be idempotent.
func (p *Proxy) forward(r *http.Request, body []byte, credential auth.DownstreamCredential) (*http.Response, error) {
	target := p.downstreamURL(r.URL.RawQuery)

	downstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build downstream request: %w", err)
	}

	copyHeaders(downstreamReq.Header, r.Header)
	cleanHopHeaders(downstreamReq.Header)
	augmentForwardHeaders(downstreamReq.Header, r)

	// The caller's proof never reaches the downstream server; only the
	// resolved credential does.
	downstreamReq.Header.Del(auth.HeaderAuthorization)
	downstreamReq.Header.Del(auth.HeaderAPIKey)
	if v := credential.AuthorizationValue(); v != "" {
		downstreamReq.Header.Set(auth.HeaderAuthorization, v)
	}

	downstreamReq.Host = target.Host

	resp, err := p.client.Do(downstreamReq)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, &httpError{Status: http.StatusGatewayTimeout, Err: err}
		default:
			var netErr net.Error
			if errors.As(err, &netErr); netErr != nil && netErr.Timeout() {
				return nil, &httpError{Status: http.StatusGatewayTimeout, Err: err}
			}
		}
		return nil, fmt.Errorf("perform downstream request: %w", err)
	}

	return resp, nil
}

// downstreamURL resolves the outbound target. A bare host in the
// configuration gets the canonical MCP path appended; an explicit path is
// used as-is.
func (p *Proxy) downstreamURL(rawQuery string) *url.URL {
	target := *p.baseURL
	if target.Path == "" || target.Path == "/" {
		target.Path = proxyPath
	}
	target.RawQuery = rawQuery
	return &target
}

func (p *Proxy) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (p *Proxy) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !p.ready.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// finish writes a local (non-proxied) response and records its outcome.
func (p *Proxy) finish(w http.ResponseWriter, event zerolog.Logger, status int, outcome string) {
	p.collector.ObserveRequest(status, outcome)
	writeError(w, status, outcome)
	event.Warn().Int("status", status).Str("outcome", outcome).Msg("request rejected")
}

// accessLog logs every request with its duration and final status. Probe
// endpoints log at debug to keep the noise down.
func (p *Proxy) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		evt := p.logger.Info()
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			evt = p.logger.Debug()
		}
		evt.
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// writeError emits a JSON error body carrying only a generic reason code.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q}`+"\n", code)
}

// clientAddr extracts the client IP used as the rate guard key.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// cloneURL makes a shallow copy of the provided URL pointer.
func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// copyHeaders appends all headers from src into dst.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// cleanHopHeaders removes hop-by-hop headers that should not be forwarded.
func cleanHopHeaders(h http.Header) {
	for k := range hopHeaders {
		h.Del(k)
	}
}

// augmentForwardHeaders ensures X-Forwarded-* headers capture client metadata.
func augmentForwardHeaders(h http.Header, r *http.Request) {
	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		prior := r.Header.Get("X-Forwarded-For")
		if prior != "" {
			clientIP = prior + ", " + clientIP
		}
		h.Set("X-Forwarded-For", clientIP)
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		h.Set("X-Forwarded-Proto", scheme)
	} else {
		h.Set("X-Forwarded-Proto", "http")
	}
	h.Set("X-Forwarded-Host", r.Host)
}

// httpError wraps a status code with the underlying error from the downstream round trip.
type httpError struct {
	Status int   // Status preserves the HTTP status to emit to the caller.
	Err    error // Err retains the original cause for logging.
}

// Error implements the error interface for httpError.
func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *httpError) Unwrap() error {
	return e.Err
}
