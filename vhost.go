// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"regexp"
	"sync"
)

// vhostEntry is one registered virtual host: its label, document-root directory and the
// compiled glob pattern its Host header must match.
type vhostEntry struct {
	label string
	root  string
	re    *regexp.Regexp
}

// VHostTable resolves a request's Host header to a vhost label and document root, matching
// registration order and falling back to the configured default (spec §3 "Virtual host
// selection"). Generalized from the teacher's NewVirtualHostHandler, which only supported an
// exact Host-string map, to glob patterns ("*.example.com") and an "all" reserved fallback.
type VHostTable struct {
	mu           sync.RWMutex
	entries      []*vhostEntry
	byLabel      map[string]*vhostEntry
	defaultLabel string
}

// NewVHostTable creates an empty table defaulting unmatched hosts to defaultLabel.
func NewVHostTable(defaultLabel string) *VHostTable {
	return &VHostTable{byLabel: make(map[string]*vhostEntry), defaultLabel: defaultLabel}
}

// Add registers a vhost label with its document root. "all" is a reserved label matching any
// host and is only ever consulted after every other registered label has failed to match.
func (t *VHostTable) Add(label, root string) {
	var re *regexp.Regexp
	if label == "all" {
		re = regexp.MustCompile(".*")
	} else if compiled, err := compileGlob(label); err == nil {
		re = compiled
	} else {
		re = regexp.MustCompile("(?i)^" + regexp.QuoteMeta(label) + "$")
	}
	entry := &vhostEntry{label: label, root: root, re: re}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	t.byLabel[label] = entry
}

// Has reports whether label has been registered.
func (t *VHostTable) Has(label string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byLabel[label]
	return ok
}

// Count reports how many vhost labels are registered, "all" included. Used for startup
// diagnostics so an operator staring at the banner line can tell a missing VHosts entry in
// their config from a server that simply has nothing to do yet.
func (t *VHostTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Match resolves host to its vhost label and document root: first registered non-"all" entry
// whose pattern matches, then the default label, then "all", then the zero value.
func (t *VHostTable) Match(host string) (label, root string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if e.label == "all" {
			continue
		}
		if e.re.MatchString(host) {
			return e.label, e.root
		}
	}
	if e, ok := t.byLabel[t.defaultLabel]; ok {
		return e.label, e.root
	}
	if e, ok := t.byLabel["all"]; ok {
		return e.label, e.root
	}
	return t.defaultLabel, ""
}
