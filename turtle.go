// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

/*
Package turtle implements a multi-tenant HTTP/HTTPS server and reverse proxy: virtual-host
routing, a pluggable middleware pipeline with error-arity forwarding, a representation cache
keyed by strong validators, transparent content negotiation, and a file-backed resource
handler.

Example:

	cfg := turtle.Options{Default: "main", Root: "."}
	cfg.VHosts = map[string]string{"main": "."}
	s := turtle.New(cfg)
	s.Handle("all", "GET", "/hello", turtle.HandlerFunc(func(c *turtle.Context) error {
		return c.Respond(http.StatusOK, []byte("hello"), nil)
	}))
	log.Fatal(turtle.StartConfig{Address: ":8000"}.Start(s))
*/
package turtle

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Version is the server's own release string, used to build the default Server header
// ("turtle.io/<version>") and the startup banner.
const Version = "1.0.0"

// HandlerFunc is a single step in a route's middleware chain.
type HandlerFunc func(c *Context) error

// ErrorHandlerFunc is a handler that only runs once an earlier HandlerFunc in the same
// chain has returned a non-nil error (spec: "arity 4" handlers, see middleware.go).
type ErrorHandlerFunc func(err error, c *Context) error

// Entry is a single representation-cache record, keyed by canonical URL elsewhere.
type Entry struct {
	ETag      string
	Headers   http.Header
	Mimetype  string
	Timestamp int64
}

// ETagCache is the interface the response emitter and conditional-request gate consume.
// The concrete implementation (an LRU of Entry with on-disk side files) lives in the
// sibling cache package; Server only depends on this interface to avoid an import cycle.
type ETagCache interface {
	Lookup(url string) (Entry, bool)
	Register(url string, entry Entry)
	Unregister(url string)
}

// FileWatcher is the interface the response emitter uses to arrange cache invalidation
// when a GET response is backed by a local file. The concrete implementation lives in the
// cache package (an fsnotify-backed registry).
type FileWatcher interface {
	Watch(url, path string)
}

// noopCache and noopWatcher let Server run standalone (e.g. in tests) without wiring a
// real cache/watcher implementation.
type noopCache struct{}

func (noopCache) Lookup(string) (Entry, bool) { return Entry{}, false }
func (noopCache) Register(string, Entry)      {}
func (noopCache) Unregister(string)           {}

type noopWatcher struct{}

func (noopWatcher) Watch(string, string) {}

// Options configures a Server. It mirrors the configuration object described in spec §6;
// translating a richer on-disk/env configuration (YAML, env vars, ...) into Options is the
// job of the config package and cmd/turtled, not of Server itself.
type Options struct {
	ID      string
	Default string // required: label of the default vhost
	// VHosts maps a vhost label to its document-root directory, relative to Root.
	VHosts map[string]string
	Root   string // global document root; vhost roots are resolved under it

	Index    []string          // ordered directory-index filenames
	Headers  map[string]string // default response headers, keys lowercased
	Compress bool
	JSONIndent string
	MaxBytes int64 // 0 disables the body-size limit

	ProxyRewrite []string // content-type regex sources, joined with "|"

	Logger     *slog.Logger
	LogFormat  string // fasttemplate access-log format; defaults to DefaultAccessLogFormat
}

// Server is the top-level framework instance: virtual-host table, route index, middleware
// runner, and the collaborators (cache, watcher, prober) the request pipeline consults.
//
// Goroutine safety: do not mutate Server fields, nor add routes, after the server has
// started serving requests — the same rule the teacher documents for Echo.
type Server struct {
	Options Options

	Logger    *slog.Logger
	Cache     ETagCache
	Watch     FileWatcher
	SideFiles SideFileStore
	Prober    Prober
	AccessLog *AccessLogger

	// FileHandler is invoked as the terminal handler for GET-like requests once the
	// middleware chain drains without error (spec §4.1 "Terminal behavior"), and as the
	// self-registering fallback handler (spec §4.1 "Allow-set self-registration").
	// Wired externally (by cmd/turtled) to the fsys package's handler to avoid an
	// import cycle between turtle and fsys.
	FileHandler HandlerFunc

	// HTTPErrorHandler renders a final error into a response when the chain terminates
	// with an error that no 4-arity handler consumed.
	HTTPErrorHandler func(c *Context, err error)

	router  *Router
	vhosts  *VHostTable
	contextPool sync.Pool

	startedAt time.Time
}

// New creates a Server from Options. Each Options.VHosts root is joined onto Options.Root.
// If the Options.Default label is absent from Options.VHosts, New registers that label
// rooted at Options.Root.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	if _, ok := opts.Headers["server"]; !ok {
		opts.Headers["server"] = "turtle.io/" + Version
	}

	accessLog, err := NewAccessLogger(opts.LogFormat)
	if err != nil {
		accessLog, _ = NewAccessLogger("")
	}

	s := &Server{
		Options:          opts,
		Logger:           opts.Logger,
		Cache:            noopCache{},
		Watch:            noopWatcher{},
		SideFiles:        noopSideFiles{},
		Prober:           NoopProber{},
		AccessLog:        accessLog,
		HTTPErrorHandler: DefaultHTTPErrorHandler,
		router:           NewRouter(),
		vhosts:           NewVHostTable(opts.Default),
		startedAt:        time.Time{},
	}
	for label, root := range opts.VHosts {
		s.vhosts.Add(label, filepath.Join(opts.Root, root))
	}
	if !s.vhosts.Has(opts.Default) {
		s.vhosts.Add(opts.Default, opts.Root)
	}
	s.contextPool.New = func() any { return s.newContext() }
	return s
}

// Router exposes the route index for registration and introspection.
func (s *Server) Router() *Router { return s.router }

// VHosts exposes the virtual-host table for registration and introspection.
func (s *Server) VHosts() *VHostTable { return s.vhosts }

// Handle registers handlers under (host, method, pattern). host and method may be "all"
// as universal fallbacks (spec §3 "Route entry"). Panics on an invalid pattern, matching
// the teacher's own panic-on-registration-error convention (Echo.Add).
func (s *Server) Handle(host, method, pattern string, handlers ...any) {
	records := make([]handlerRecord, 0, len(handlers))
	for i, h := range handlers {
		records = append(records, newHandlerRecord(identity(host, method, pattern, i), h))
	}
	if err := s.router.Add(host, method, pattern, records); err != nil {
		panic(err)
	}
}

// Blacklist marks a handler identity (as produced by Handle's registration site) so that
// its presence in a route's handler list does not grant that route's method in the
// computed Allow set (spec §3 "Blacklist").
func (s *Server) Blacklist(identity string) {
	s.router.blacklist(hashIdentity(identity))
}

func identity(host, method, pattern string, index int) string {
	return host + "|" + method + "|" + pattern + "|" + strconv.Itoa(index)
}

// ServeHTTP implements http.Handler: it is the entry point for the whole request pipeline
// described in spec §4.1.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := s.contextPool.Get().(*Context)
	c.reset(r, w)
	defer s.contextPool.Put(c)

	s.prepareRequest(c)
	s.dispatch(c)

	method, vhost := c.Request().Method, c.VHost()
	s.Prober.Hit(method, vhost, c.Response().Status)
	s.Prober.Duration(method, vhost, c.Elapsed())
	if s.AccessLog != nil {
		s.Logger.Info(s.AccessLog.Line(c))
	}
}

// newContext allocates a fresh Context bound to this Server; used to seed the pool.
func (s *Server) newContext() *Context {
	return &Context{
		server: s,
		store:  make(map[string]any),
	}
}

