// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitBurstThenReject(t *testing.T) {
	g := New(10, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, g.Admit("192.0.2.1"), "request %d within burst", i+1)
	}
	assert.False(t, g.Admit("192.0.2.1"), "request past burst capacity")
}

func TestAdmitRefillsOverTime(t *testing.T) {
	g := New(10, 1)

	require.True(t, g.Admit("192.0.2.1"))
	require.False(t, g.Admit("192.0.2.1"))

	// One token refills after 1/R seconds.
	time.Sleep(110 * time.Millisecond)
	assert.True(t, g.Admit("192.0.2.1"))
}

func TestAdmitIsolatesClients(t *testing.T) {
	g := New(10, 1)

	require.True(t, g.Admit("192.0.2.1"))
	require.False(t, g.Admit("192.0.2.1"))

	assert.True(t, g.Admit("198.51.100.7"), "a different IP has its own bucket")
}

func TestPruneIdle(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := New(10, 5)
	g.now = func() time.Time { return now }

	g.Admit("192.0.2.1")
	g.Admit("198.51.100.7")

	// Only the first client goes idle.
	now = now.Add(2 * time.Minute)
	g.Admit("198.51.100.7")

	now = now.Add(2 * time.Minute)
	removed := g.PruneIdle()

	assert.Equal(t, 1, removed)
	assert.Len(t, g.limiters, 1)

	// The pruned client gets a fresh bucket on its next request.
	assert.True(t, g.Admit("192.0.2.1"))
}
