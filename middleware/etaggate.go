// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware

import (
	"net/http"
	"strings"

	"github.com/airstand/turtle"
)

// ETagGate short-circuits GET/HEAD requests whose If-None-Match (or If-Modified-Since)
// already matches the cached representation, responding 304 directly from the
// representation cache without reaching the route's handlers or the file handler (spec §4.3
// "conditional-request gate"). Register it ahead of any route that can hit the cache. A
// ranged GET is excluded: it wants its 206 slice, not a short-circuited 304.
func ETagGate() turtle.HandlerFunc {
	return func(c *turtle.Context) error {
		req := c.Request()
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			return nil
		}
		if req.Method == http.MethodGet && req.Header.Get(turtle.HeaderRange) != "" {
			return nil
		}

		entry, ok := c.Server().Cache.Lookup(c.CanonicalURL())
		if !ok || entry.ETag == "" {
			return nil
		}

		if inm := req.Header.Get(turtle.HeaderIfNoneMatch); inm != "" {
			if !matchesETag(inm, entry.ETag) {
				return nil
			}
			return c.Respond(http.StatusNotModified, nil, map[string]string{turtle.HeaderETag: entry.ETag})
		}

		if ims := req.Header.Get(turtle.HeaderIfModifiedSince); ims != "" {
			if t, err := http.ParseTime(ims); err == nil && entry.Timestamp <= t.Unix() {
				return c.Respond(http.StatusNotModified, nil, map[string]string{turtle.HeaderETag: entry.ETag})
			}
		}
		return nil
	}
}

// matchesETag reports whether header (an If-None-Match value, possibly a comma-separated
// list or "*") matches etag. Surrounding quotes are ignored on both sides.
func matchesETag(header, etag string) bool {
	if strings.TrimSpace(header) == "*" {
		return true
	}
	etag = strings.Trim(etag, `"`)
	for _, tag := range strings.Split(header, ",") {
		tag = strings.Trim(strings.TrimSpace(tag), `"`)
		if tag == etag {
			return true
		}
	}
	return false
}
