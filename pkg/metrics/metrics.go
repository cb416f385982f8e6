// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package metrics exposes the gateway's Prometheus instrumentation on a
// dedicated listener, isolated from proxied traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Collector holds the gateway's metric instruments on a private registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	authFailures    prometheus.Counter
	rateLimited     prometheus.Counter
	upstreamLatency prometheus.Histogram
}

// NewCollector registers the gateway instruments on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests handled, by HTTP status code and outcome.",
		}, []string{"code", "outcome"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Requests rejected with 401.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests shed with 429 before authentication.",
		}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Round-trip latency of forwarded downstream requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestsTotal,
		c.authFailures,
		c.rateLimited,
		c.upstreamLatency,
	)

	return c
}

// ObserveRequest records one handled request.
func (c *Collector) ObserveRequest(status int, outcome string) {
	c.requestsTotal.WithLabelValues(strconv.Itoa(status), outcome).Inc()
}

// ObserveAuthFailure records a 401.
func (c *Collector) ObserveAuthFailure() {
	c.authFailures.Inc()
}

// ObserveRateLimited records a 429.
func (c *Collector) ObserveRateLimited() {
	c.rateLimited.Inc()
}

// ObserveUpstream records the downstream round-trip duration.
func (c *Collector) ObserveUpstream(d time.Duration) {
	c.upstreamLatency.Observe(d.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on its own port so operational data never shares
// a listener with proxied traffic.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer builds a metrics server for the given collector.
func NewServer(addr string, collector *Collector) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log.With().Str("component", "metrics").Logger(),
	}
}

// Start blocks serving metrics until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("metrics server listening")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the metrics listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
