// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(identity string) handlerRecord {
	return newHandlerRecord(identity, HandlerFunc(func(c *Context) error { return nil }))
}

func TestRouter_HandlersConcatenatesInFallbackOrder(t *testing.T) {
	r := NewRouter()
	assert.NoError(t, r.Add("all", "all", "/files/*", []handlerRecord{rec("all-all")}))
	assert.NoError(t, r.Add("all", http.MethodGet, "/files/*", []handlerRecord{rec("all-get")}))
	assert.NoError(t, r.Add("example.com", "all", "/files/*", []handlerRecord{rec("host-all")}))
	assert.NoError(t, r.Add("example.com", http.MethodGet, "/files/*", []handlerRecord{rec("host-get")}))

	handlers := r.Handlers("example.com", http.MethodGet, "/files/a.txt")
	assert.Len(t, handlers, 4)
}

func TestRouter_GlobPatternMatching(t *testing.T) {
	r := NewRouter()
	assert.NoError(t, r.Add("all", http.MethodGet, "/files/*", []handlerRecord{rec("a")}))
	assert.NoError(t, r.Add("all", http.MethodGet, "/item/?", []handlerRecord{rec("b")}))

	assert.Len(t, r.Handlers("all", http.MethodGet, "/files/a/b/c.txt"), 1)
	assert.Len(t, r.Handlers("all", http.MethodGet, "/item/1"), 1)
	assert.Len(t, r.Handlers("all", http.MethodGet, "/item/12"), 0)
}

func TestRouter_Allow_AggregatesMethodsAcrossMatchingRoutes(t *testing.T) {
	r := NewRouter()
	assert.NoError(t, r.Add("all", http.MethodGet, "/res", []handlerRecord{rec("get")}))
	assert.NoError(t, r.Add("all", http.MethodPost, "/res", []handlerRecord{rec("post")}))

	allow := r.Allow("all", "/res")
	assert.Equal(t, "GET, POST", allow)
}

func TestRouter_Allow_ExcludesBlacklistedOnlyRoute(t *testing.T) {
	r := NewRouter()
	h := rec("blacklisted")
	assert.NoError(t, r.Add("all", http.MethodDelete, "/res", []handlerRecord{h}))
	assert.NoError(t, r.Add("all", http.MethodGet, "/res", []handlerRecord{rec("get")}))

	r.blacklist(h.hash)

	allow := r.Allow("all", "/res")
	assert.Equal(t, "GET", allow)
}

func TestRouter_Allow_DoesNotAffectHandlerExecution(t *testing.T) {
	r := NewRouter()
	h := rec("blacklisted")
	assert.NoError(t, r.Add("all", http.MethodDelete, "/res", []handlerRecord{h}))

	r.blacklist(h.hash)

	// Blacklisting only suppresses Allow-set membership, never execution in the chain.
	handlers := r.Handlers("all", http.MethodDelete, "/res")
	assert.Len(t, handlers, 1)
}

func TestCompileGlob(t *testing.T) {
	re, err := compileGlob("/files/*.txt")
	assert.NoError(t, err)
	assert.True(t, re.MatchString("/files/a.txt"))
	assert.False(t, re.MatchString("/files/a.txt/extra"))
}
