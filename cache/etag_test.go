// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package cache

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airstand/turtle"
)

func TestStore_RegisterLookupUnregister(t *testing.T) {
	s, err := NewStore(16, 0)
	require.NoError(t, err)

	entry := turtle.Entry{ETag: `"abc"`, Mimetype: "text/plain"}
	s.Register("http://example.com/a", entry)

	got, ok := s.Lookup("http://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, `"abc"`, got.ETag)

	s.Unregister("http://example.com/a")
	_, ok = s.Lookup("http://example.com/a")
	assert.False(t, ok)
}

func TestStore_RegisterSanitizesHeaders(t *testing.T) {
	s, err := NewStore(16, 0)
	require.NoError(t, err)

	hdr := http.Header{}
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Set-Cookie", "session=1")
	hdr.Set("Content-Type", "text/plain")

	s.Register("http://example.com/a", turtle.Entry{ETag: "x", Headers: hdr})
	got, _ := s.Lookup("http://example.com/a")

	assert.Empty(t, got.Headers.Get("Connection"))
	assert.Empty(t, got.Headers.Get("Set-Cookie"))
	assert.Equal(t, "text/plain", got.Headers.Get("Content-Type"))
}

func TestStore_ComputeETag_DeterministicForSameInputs(t *testing.T) {
	s, err := NewStore(16, 42)
	require.NoError(t, err)

	a := s.ComputeETag("http://example.com/a", 10, "Mon, 01 Jan 2026 00:00:00 GMT", nil)
	b := s.ComputeETag("http://example.com/a", 10, "Mon, 01 Jan 2026 00:00:00 GMT", nil)
	c := s.ComputeETag("http://example.com/a", 11, "Mon, 01 Jan 2026 00:00:00 GMT", nil)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStore_ComputeETag_DiffersWithSeed(t *testing.T) {
	s1, _ := NewStore(16, 1)
	s2, _ := NewStore(16, 2)

	a := s1.ComputeETag("http://example.com/a", 10, "", nil)
	b := s2.ComputeETag("http://example.com/a", 10, "", nil)

	assert.NotEqual(t, a, b)
}
