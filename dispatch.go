// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// prepareRequest decorates a freshly reset Context with the canonical URL, selected vhost
// and accumulated body the rest of the pipeline consumes (spec §4.1 "Request preparation").
func (s *Server) prepareRequest(c *Context) {
	r := c.request

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get(HeaderXForwardedProto); proto != "" {
		scheme = proto
	}

	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	host = strings.ToLower(host)

	label, root := s.vhosts.Match(host)
	c.vhost = label
	c.vhostRoot = root

	canonical := *r.URL
	canonical.Scheme = scheme
	canonical.Host = r.Host
	if user, pass, ok := r.BasicAuth(); ok {
		canonical.User = url.UserPassword(user, pass)
	}
	c.parsedURL = &canonical
	c.canonicalURL = canonical.String()

	if err := c.ReadBody(); err != nil {
		c.logger.Error("turtle: failed reading request body", "error", err)
	}
}

// dispatch runs the matched handler chain for the request and falls through to the file
// handler, a 405, or a 404 per spec §4.1 "Terminal behavior".
func (s *Server) dispatch(c *Context) {
	r := c.request

	if expect := r.Header.Get(HeaderExpect); expect != "" && !strings.EqualFold(expect, "100-continue") {
		s.HTTPErrorHandler(c, NewHTTPError(http.StatusExpectationFailed, "unsupported Expect"))
		return
	}
	if c.BodyTooLarge() {
		s.HTTPErrorHandler(c, NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"))
		return
	}

	host := c.vhost
	uri := c.parsedURL.Path
	method := r.Method
	routeMethod := method
	if method == http.MethodHead || method == http.MethodOptions {
		routeMethod = http.MethodGet
	}

	allow := s.router.Allow(host, uri)
	if !allowHasMethod(allow, http.MethodGet) {
		s.ensureFileRoute(host, uri)
		allow = s.router.Allow(host, uri)
	}
	c.SetAllow(allow)

	handlers := s.router.Handlers(host, routeMethod, uri)
	if len(handlers) == 0 {
		s.terminal(c, routeMethod)
		return
	}

	err := runChain(c, handlers)
	if c.Response().Committed {
		return
	}
	if err != nil {
		s.HTTPErrorHandler(c, err)
		return
	}
	s.terminal(c, routeMethod)
}

// terminal is reached when no handler claimed the request, or the chain drained without
// error or response: fall through to the file handler for GET-like requests, otherwise 405
// when some other method is allowed here, otherwise 404.
func (s *Server) terminal(c *Context, routeMethod string) {
	if routeMethod == http.MethodGet && s.FileHandler != nil {
		if err := s.FileHandler(c); err != nil {
			s.HTTPErrorHandler(c, err)
		}
		return
	}
	if allow := c.Allow(); allow != "" {
		c.Response().Header().Set(HeaderAllow, allow)
		s.HTTPErrorHandler(c, NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))
		return
	}
	s.HTTPErrorHandler(c, NewHTTPError(http.StatusNotFound, "not found"))
}

// allowHasMethod reports whether method appears in an Allow header value built by
// Router.Allow's sorted ", "-joined list.
func allowHasMethod(allow, method string) bool {
	for _, m := range strings.Split(allow, ", ") {
		if m == method {
			return true
		}
	}
	return false
}

// ensureFileRoute installs the file handler as an exact-path route for every CRUD method it
// serves, once, the first time a path under host has no route granting GET (spec §4.1
// "Allow-set self-registration"). This is what lets a fresh path's very first PUT or POST
// reach fsys.Handler instead of 404ing for want of a registered route, and what makes the
// computed Allow set non-empty for filesystem-backed URIs from then on.
func (s *Server) ensureFileRoute(host, uri string) {
	if s.FileHandler == nil {
		return
	}
	for _, method := range [...]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete} {
		if s.router.HasExact(host, method, uri) {
			continue
		}
		rec := newHandlerRecord(identity(host, method, uri, 0), s.FileHandler)
		if err := s.router.Add(host, method, uri, []handlerRecord{rec}); err != nil {
			s.Logger.Error("turtle: failed self-registering file route", "host", host, "uri", uri, "error", err)
		}
	}
}
