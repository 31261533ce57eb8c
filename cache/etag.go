// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package cache implements the representation cache: an LRU of strong validators, on-disk
// compressed side files, and filesystem-watcher-driven invalidation (spec §3, §4.2, §4.6).
package cache

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/airstand/turtle"
)

// maxHashedBody bounds how much of a response body is folded into its ETag hash; beyond this
// the validator is derived from URL/length/last-modified alone (spec §3 "mmh3(url|length|
// last-modified[|body])" — body participates only "when practical to hash").
const maxHashedBody = 64 * 1024

// Store is an LRU-backed turtle.ETagCache keyed by canonical URL (spec §3 "cache entry", §8
// invariant "entry(U).etag == mmh3(...)"). Grounded on the data model spec.md describes
// directly; the closest structural analog in the retrieval pack is danielloader-oci-pull-
// through's Store/ObjectMeta shape, reused here for an in-memory LRU instead of a blob store.
type Store struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, turtle.Entry]
	seed    uint32
}

// NewStore creates a Store holding at most size entries, hashing with the given mmh3 seed.
func NewStore(size int, seed uint32) (*Store, error) {
	l, err := lru.New[string, turtle.Entry](size)
	if err != nil {
		return nil, err
	}
	return &Store{entries: l, seed: seed}, nil
}

// Lookup implements turtle.ETagCache.
func (s *Store) Lookup(url string) (turtle.Entry, bool) {
	return s.entries.Get(url)
}

// Register implements turtle.ETagCache, sanitizing headers before they're cached.
func (s *Store) Register(url string, entry turtle.Entry) {
	entry.Headers = sanitizeHeaders(entry.Headers)
	s.mu.Lock()
	s.entries.Add(url, entry)
	s.mu.Unlock()
}

// Unregister implements turtle.ETagCache.
func (s *Store) Unregister(url string) {
	s.mu.Lock()
	s.entries.Remove(url)
	s.mu.Unlock()
}

// Close releases background resources; Store owns none directly, but satisfies the
// interface{ Close() } check gracefulShutdown (server.go) makes on Server.Cache.
func (s *Store) Close() {}

// ComputeETag hashes url, length, last-modified and (for small bodies) the body itself with
// mmh3, the validator spec §3/§8 specifies.
func (s *Store) ComputeETag(url string, length int64, lastModified string, body []byte) string {
	parts := []string{url, strconv.FormatInt(length, 10), lastModified}
	if len(body) > 0 && len(body) <= maxHashedBody {
		parts = append(parts, string(body))
	}
	h := murmur3.New64WithSeed(s.seed)
	h.Write([]byte(strings.Join(parts, "|")))
	return strconv.FormatUint(h.Sum64(), 16)
}

// sanitizeHeaders strips hop-by-hop and per-request headers before a representation is
// cached (spec §3 "sanitized headers").
func sanitizeHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Set-Cookie", "Date", turtle.HeaderXResponseTime} {
		out.Del(k)
	}
	return out
}
