// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGetter struct {
	values map[string]string
	err    error
}

func (s *stubGetter) GetSecret(_ context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[name], nil
}

func TestFetchBasicPair(t *testing.T) {
	g := &stubGetter{values: map[string]string{
		"mcp-username": "neo4j",
		"mcp-password": "graph-password",
	}}

	username, password, err := FetchBasicPair(context.Background(), g, "mcp-username", "mcp-password")
	require.NoError(t, err)
	assert.Equal(t, "neo4j", username)
	assert.Equal(t, "graph-password", password)
}

func TestFetchBasicPairPropagatesError(t *testing.T) {
	g := &stubGetter{err: errors.New("vault unreachable")}

	_, _, err := FetchBasicPair(context.Background(), g, "mcp-username", "mcp-password")
	assert.Error(t, err)
}

func TestFetchBasicPairIncomplete(t *testing.T) {
	g := &stubGetter{values: map[string]string{"mcp-username": "neo4j"}}

	_, _, err := FetchBasicPair(context.Background(), g, "mcp-username", "mcp-password")
	assert.Error(t, err)
}
