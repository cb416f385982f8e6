// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorExposesInstruments(t *testing.T) {
	c := NewCollector()

	c.ObserveRequest(200, "proxied")
	c.ObserveRequest(401, "unauthorized")
	c.ObserveAuthFailure()
	c.ObserveRateLimited()
	c.ObserveUpstream(150 * time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gateway_requests_total{code="200",outcome="proxied"} 1`)
	assert.Contains(t, body, `gateway_requests_total{code="401",outcome="unauthorized"} 1`)
	assert.Contains(t, body, `gateway_auth_failures_total 1`)
	assert.Contains(t, body, `gateway_rate_limited_total 1`)
	assert.Contains(t, body, "gateway_upstream_duration_seconds_count 1")
}

func TestCollectorsAreIndependent(t *testing.T) {
	// Each collector owns a private registry so tests and restarts never
	// collide on duplicate registration.
	a := NewCollector()
	b := NewCollector()
	a.ObserveAuthFailure()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "gateway_auth_failures_total 0")
}
