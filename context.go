// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Context carries the per-request state the pipeline decorates the request with (spec §3
// "Request context"): canonical URL, parsed components, selected vhost, client IP, method,
// accumulated body, Allow string, timer and CORS flag.
type Context struct {
	server *Server

	request  *http.Request
	response *Response

	canonicalURL string
	parsedURL    *url.URL
	vhost        string
	vhostRoot    string
	ip           string
	started      time.Time

	allow string
	cors  bool

	body       []byte
	bodyTooBig bool

	// localPath is set by the file handler when a GET is served from disk, so the
	// response emitter's cache write-through step (§4.2) can register a watcher on it.
	localPath string

	store  map[string]any
	logger *slog.Logger
}

// reset prepares a pooled Context for a new request/response pair.
func (c *Context) reset(r *http.Request, w http.ResponseWriter) {
	c.request = r
	if c.response == nil {
		c.response = NewResponse(w, c.server.Logger)
	} else {
		c.response.reset(w)
	}
	c.canonicalURL = ""
	c.parsedURL = nil
	c.vhost = ""
	c.vhostRoot = ""
	c.ip = ""
	c.started = time.Now()
	c.allow = ""
	c.cors = r != nil && r.Header.Get(HeaderOrigin) != ""
	c.body = nil
	c.bodyTooBig = false
	c.localPath = ""
	c.store = make(map[string]any)
	c.logger = c.server.Logger
}

// Request returns the underlying *http.Request.
func (c *Context) Request() *http.Request { return c.request }

// Response returns the response decorator.
func (c *Context) Response() *Response { return c.response }

// Server returns the owning Server.
func (c *Context) Server() *Server { return c.server }

// Logger returns the request-scoped logger (request ID attached by middleware.requestid).
func (c *Context) Logger() *slog.Logger { return c.logger }

// SetLogger replaces the request-scoped logger; used by the request-ID middleware.
func (c *Context) SetLogger(l *slog.Logger) { c.logger = l }

// Get/Set store arbitrary per-request values, same convenience the teacher's Context
// exposes (aldas-echo/context.go).
func (c *Context) Get(key string) any    { return c.store[key] }
func (c *Context) Set(key string, v any) { c.store[key] = v }

// CanonicalURL returns the scheme://[auth@]host/path?query form computed at pipeline
// entry (spec §4.1).
func (c *Context) CanonicalURL() string { return c.canonicalURL }

// ParsedURL returns the parsed canonical URL.
func (c *Context) ParsedURL() *url.URL { return c.parsedURL }

// VHost returns the selected virtual-host label.
func (c *Context) VHost() string { return c.vhost }

// VHostRoot returns the document-root directory for the selected virtual host.
func (c *Context) VHostRoot() string { return c.vhostRoot }

// IP returns the client address, preferring the last hop of X-Forwarded-For over the
// socket peer (spec §3), generalizing the teacher's RealIP which preferred the first hop.
func (c *Context) IP() string {
	if c.ip != "" {
		return c.ip
	}
	if xff := c.request.Header.Get(HeaderXForwardedFor); xff != "" {
		parts := strings.Split(xff, ",")
		c.ip = strings.TrimSpace(parts[len(parts)-1])
		return c.ip
	}
	host, _, err := net.SplitHostPort(c.request.RemoteAddr)
	if err != nil {
		c.ip = c.request.RemoteAddr
	} else {
		c.ip = host
	}
	return c.ip
}

// CORS reports whether the request carried an Origin header (spec §3).
func (c *Context) CORS() bool { return c.cors }

// Allow returns the accumulated Allow string for the matched route (spec §3).
func (c *Context) Allow() string { return c.allow }

// SetAllow is called by the router once the permissions cache resolves the Allow string
// for this request's (vhost, uri).
func (c *Context) SetAllow(allow string) { c.allow = allow }

// Elapsed returns the time since the request started, used for X-Response-Time (spec §4.2).
func (c *Context) Elapsed() time.Duration { return time.Since(c.started) }

// Body returns the accumulated request body (spec §3 "request body buffer").
func (c *Context) Body() []byte { return c.body }

// SetBody replaces the accumulated request body in place, used by middleware that transforms
// the body after it has already been read (e.g. gzip request-body decompression), since
// ReadBody has already consumed Request().Body by the time any handler runs.
func (c *Context) SetBody(b []byte) { c.body = b }

// BodyTooLarge reports whether accumulation was aborted because MaxBytes was exceeded.
func (c *Context) BodyTooLarge() bool { return c.bodyTooBig }

// SetLocalPath decorates the request with the local filesystem path the response is
// being served from, so the emitter can register a watcher on it (spec §4.2, §4.6).
func (c *Context) SetLocalPath(p string) { c.localPath = p }

// LocalPath returns the path set by SetLocalPath, or "" if none.
func (c *Context) LocalPath() string { return c.localPath }

// ReadBody accumulates the request body into memory for methods that carry one
// (PUT/POST/PATCH), enforcing Options.MaxBytes (spec §4.1 "Body accumulation"). It is a
// no-op for methods without a body and idempotent once called.
func (c *Context) ReadBody() error {
	if c.body != nil || c.bodyTooBig {
		return nil
	}
	switch c.request.Method {
	case http.MethodPut, http.MethodPost, http.MethodPatch:
	default:
		return nil
	}
	limit := c.server.Options.MaxBytes
	var r io.Reader = c.request.Body
	if limit > 0 {
		r = io.LimitReader(c.request.Body, limit+1)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if limit > 0 && int64(len(buf)) > limit {
		c.bodyTooBig = true
		return nil
	}
	c.body = buf
	return nil
}

// Redirect decorates and commits a redirect response (spec §4.1 "respond(body, status,
// headers)" convenience operations).
func (c *Context) Redirect(code int, uri string) error {
	return c.Respond(code, nil, map[string]string{HeaderLocation: uri})
}

// Error emits a terminal error response for status, using the message as the body.
func (c *Context) Error(status int, message string) error {
	return c.Respond(status, []byte(message), nil)
}

// Respond runs the response through the emitter (response.go), which applies the header
// discipline, content negotiation, range handling and cache write-through spec §4.2
// describes.
func (c *Context) Respond(status int, body []byte, headers map[string]string) error {
	return Emit(c, EmitOptions{Status: status, Body: body, Headers: headers})
}

// JSON emits v as JSON, or as a CSV projection when the request negotiated text/csv (spec
// §4.2 "content negotiation").
func (c *Context) JSON(status int, v any) error {
	return Emit(c, EmitOptions{Status: status, JSON: v})
}

// RespondFile emits a response backed by an on-disk file (spec §4.2 "file" emission
// modes): streamed, range-aware, and eligible for chunked transfer-encoding. contentType may
// be "" to let the emitter fall back to extension-based detection.
func (c *Context) RespondFile(status int, path, contentType string, headers map[string]string) error {
	return Emit(c, EmitOptions{Status: status, FilePath: path, ContentType: contentType, Headers: headers})
}
