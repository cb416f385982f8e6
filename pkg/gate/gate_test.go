// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresAuth(t *testing.T) {
	g := New()

	for _, tc := range []struct {
		method   string
		required bool
	}{
		{"initialize", false},
		{"notifications/initialized", false},
		{"tools/list", false},
		{"ping", false},
		{"tools/call", true},
		{"resources/read", true},
		{"prompts/get", true},
		{"completely/made-up", true},
		{"", true},
	} {
		assert.Equal(t, tc.required, g.RequiresAuth(tc.method), "method %q", tc.method)
	}
}

func TestRequiresAuthCustomTable(t *testing.T) {
	g := NewWithOpenMethods([]string{"ping"})

	assert.False(t, g.RequiresAuth("ping"))
	assert.True(t, g.RequiresAuth("tools/list"))
}

func TestMethodFromBody(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{"tools list", `{"jsonrpc":"2.0","method":"tools/list","id":1}`, "tools/list"},
		{"tools call", `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"read-cypher"},"id":2}`, "tools/call"},
		{"missing method", `{"jsonrpc":"2.0","id":3}`, ""},
		{"not json", `hello`, ""},
		{"empty", ``, ""},
		{"wrong type", `{"method":42}`, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MethodFromBody([]byte(tc.body)))
		})
	}
}
