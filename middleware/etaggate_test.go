// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airstand/turtle"
	"github.com/airstand/turtle/cache"
	"github.com/airstand/turtle/middleware"
)

func newGateServer(t *testing.T) *turtle.Server {
	t.Helper()
	store, err := cache.NewStore(16, 0)
	require.NoError(t, err)

	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Cache = store

	var hits int
	s.Handle("all", http.MethodGet, "/doc",
		middleware.ETagGate(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			hits++
			return c.Respond(http.StatusOK, []byte("body"), map[string]string{turtle.HeaderETag: `"v1"`})
		}),
	)
	s.Cache.Register("http://example.com/doc", turtle.Entry{ETag: `"v1"`})
	return s
}

func TestETagGate_RespondsNotModifiedOnMatchingIfNoneMatch(t *testing.T) {
	s := newGateServer(t)

	req := httptest.NewRequest(http.MethodGet, "/doc", nil)
	req.Host = "example.com"
	req.Header.Set(turtle.HeaderIfNoneMatch, `"v1"`)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Equal(t, `"v1"`, w.Header().Get(turtle.HeaderETag))
}

func TestETagGate_PassesThroughOnMismatch(t *testing.T) {
	s := newGateServer(t)

	req := httptest.NewRequest(http.MethodGet, "/doc", nil)
	req.Host = "example.com"
	req.Header.Set(turtle.HeaderIfNoneMatch, `"stale"`)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body", w.Body.String())
}

func TestETagGate_PassesThroughRangedGetEvenOnMatch(t *testing.T) {
	s := newGateServer(t)

	req := httptest.NewRequest(http.MethodGet, "/doc", nil)
	req.Host = "example.com"
	req.Header.Set(turtle.HeaderIfNoneMatch, `"v1"`)
	req.Header.Set(turtle.HeaderRange, "bytes=0-1")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bo", w.Body.String())
}

func TestETagGate_IgnoresNonGetMethods(t *testing.T) {
	store, err := cache.NewStore(16, 0)
	require.NoError(t, err)

	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Cache = store
	s.Cache.Register("http://example.com/doc", turtle.Entry{ETag: `"v1"`})

	s.Handle("all", http.MethodPost, "/doc",
		middleware.ETagGate(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			return c.Respond(http.StatusCreated, nil, nil)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/doc", nil)
	req.Host = "example.com"
	req.Header.Set(turtle.HeaderIfNoneMatch, `"v1"`)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}
