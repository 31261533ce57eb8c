// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package cache

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatcherRegistry implements turtle.FileWatcher: it arranges for a cache entry to be
// unregistered when the file backing it changes or disappears (spec §4.6 "watcher-entry
// lifecycle"). A path is watched once no matter how many URLs reference it; refcount is kept
// as a plain integer even though this spec's one-path-one-URL invariant (§3) means it is
// always 0 or 1, matching spec §3's literal "refcount(1)" wording.
type WatcherRegistry struct {
	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	refs       map[string]int
	urls       map[string]map[string]bool
	invalidate func(url string)
}

// NewWatcherRegistry starts a registry that calls invalidate(url) for every URL watching a
// path once that path is written, removed, or renamed.
func NewWatcherRegistry(invalidate func(url string)) (*WatcherRegistry, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	r := &WatcherRegistry{
		watcher:    w,
		refs:       make(map[string]int),
		urls:       make(map[string]map[string]bool),
		invalidate: invalidate,
	}
	go r.run()
	return r, nil
}

// Watch implements turtle.FileWatcher.
func (r *WatcherRegistry) Watch(url, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[path] == 0 {
		if err := r.watcher.Add(path); err != nil {
			return
		}
	}
	r.refs[path] = 1
	if r.urls[path] == nil {
		r.urls[path] = make(map[string]bool)
	}
	r.urls[path][url] = true
}

func (r *WatcherRegistry) run() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				r.evict(ev.Name)
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (r *WatcherRegistry) evict(path string) {
	r.mu.Lock()
	urls := r.urls[path]
	delete(r.urls, path)
	delete(r.refs, path)
	r.mu.Unlock()

	_ = r.watcher.Remove(path)
	for url := range urls {
		r.invalidate(url)
	}
}

// Close stops the watcher, implementing the interface{ Close() error } check
// gracefulShutdown (server.go) makes on Server.Watch.
func (r *WatcherRegistry) Close() error {
	return r.watcher.Close()
}
