// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware_test

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airstand/turtle"
	"github.com/airstand/turtle/middleware"
)

func gzipBody(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompress_DecodesGzipBody(t *testing.T) {
	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	var got string
	s.Handle("all", http.MethodPost, "/upload",
		middleware.Decompress(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			got = string(c.Body())
			return c.Respond(http.StatusOK, nil, nil)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(gzipBody(t, "hello world")))
	req.Header.Set(turtle.HeaderContentEncoding, "gzip")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", got)
}

func TestDecompress_SkipsNonGzipBody(t *testing.T) {
	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Handle("all", http.MethodPost, "/upload",
		middleware.Decompress(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			return c.Respond(http.StatusOK, c.Body(), nil)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte("plain")))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plain", w.Body.String())
}
