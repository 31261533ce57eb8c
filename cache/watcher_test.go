// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRegistry_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	invalidated := make(chan string, 1)
	reg, err := NewWatcherRegistry(func(url string) { invalidated <- url })
	require.NoError(t, err)
	defer reg.Close()

	reg.Watch("http://example.com/watched.txt", path)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case url := <-invalidated:
		assert.Equal(t, "http://example.com/watched.txt", url)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for invalidation")
	}
}

func TestWatcherRegistry_Close(t *testing.T) {
	reg, err := NewWatcherRegistry(func(string) {})
	require.NoError(t, err)
	assert.NoError(t, reg.Close())
}
