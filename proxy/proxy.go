// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package proxy implements the reverse-proxy route type: upstream dispatch over a tuned,
// long-lived transport, streaming or rewriting response modes, and per-route rate limiting
// (spec §4.5).
package proxy

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/airstand/turtle"
)

// Route proxies one (host, method, pattern) registration to an upstream origin. Grounded on
// danielloader-oci-pull-through's UpstreamClient (single long-lived *http.Transport, explicit
// per-header forwarding instead of httputil.ReverseProxy's blanket copy) and Handler
// (request dispatch shape), generalized from a read-only OCI-specific proxy to the
// streaming/rewriting reverse proxy spec §4.5 describes.
type Route struct {
	// Upstream is the origin base URL, e.g. "https://api.example.com".
	Upstream string
	// MountPath is the local route prefix this Route is registered under, e.g. "/app". Used
	// in rewriting mode to prefix absolute internal references ("/xxx/...") in HTML
	// href/src/action attributes so a non-root mount keeps resolving against the proxy
	// instead of the site root. Non-HTML bodies, JSON included, only get the upstream-origin
	// substring replacement; bare "/xxx" references in them are not prefixed. Empty or "/"
	// means root-mounted: no prefix is added.
	MountPath string
	// Mode selects "streaming" (no body rewrite) or "rewriting" (body rewrite per
	// RewriteContentTypes) emission (spec §4.5 "streaming vs RESTful mode"). In both modes the
	// upstream body is read in full and passed through Emit, which may compress it, project it
	// to CSV or slice it for a Range request; it is never piped to the client unbuffered.
	Mode string
	// RewriteContentTypes are the content-type regex sources (joined with "|" at
	// registration) eligible for body rewriting in "rewriting" mode.
	RewriteContentTypes []string
	// MaxConnections sets a token-bucket rate limit on this route's upstream requests (spec §6
	// "proxy.maxConnections"): MaxConnections requests per second with a burst of
	// MaxConnections. It does not bound how many requests are in flight at once. 0 disables
	// the limit.
	MaxConnections int

	// OnMaxAge, if set, is called with the canonical URL and parsed max-age whenever an
	// upstream response carries Cache-Control: max-age, so the cache package's DeadlineQueue
	// can schedule deferred unregistration (spec §9 "Deferred cache invalidation").
	OnMaxAge func(url string, maxAge time.Duration)

	client  *http.Client
	limiter *connLimiter
}

// transport is shared by every Route: one tuned, long-lived *http.Transport rather than the
// per-request client net/http's zero value would otherwise force, mirroring
// danielloader-oci-pull-through's NewUpstreamClient.
var transport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 30 * time.Second,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   20,
	IdleConnTimeout:       90 * time.Second,
}

// New creates a Route mounted at mountPath. maxConnections <= 0 disables rate limiting.
func New(mountPath, upstream, mode string, rewriteContentTypes []string, maxConnections int) *Route {
	r := &Route{
		Upstream:            strings.TrimSuffix(upstream, "/"),
		MountPath:           normalizeMountPath(mountPath),
		Mode:                mode,
		RewriteContentTypes: rewriteContentTypes,
		MaxConnections:      maxConnections,
		client:              &http.Client{Transport: transport},
		limiter:             newConnLimiter(maxConnections),
	}
	return r
}

// normalizeMountPath trims a trailing slash so MountPath concatenates cleanly with a
// leading-slash reference ("/app" + "/logo.png", never "/app/" + "/logo.png"); "/" itself
// becomes "" so a root mount never adds a prefix.
func normalizeMountPath(mountPath string) string {
	mountPath = strings.TrimSuffix(mountPath, "/")
	return mountPath
}

// hopByHopHeaders are stripped before forwarding in either direction (RFC 7230 §6.1).
var hopByHopHeaders = []string{
	turtle.HeaderConnection, "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", turtle.HeaderTransferEncoding, "Upgrade",
}

// Handle is registered as a route's terminal HandlerFunc.
func (r *Route) Handle(c *turtle.Context) error {
	if err := r.limiter.wait(c.Request().Context()); err != nil {
		return turtle.NewHTTPError(http.StatusServiceUnavailable, "upstream connection limit reached")
	}

	upstreamReq, err := r.buildRequest(c)
	if err != nil {
		return turtle.NewHTTPErrorWithInternal(http.StatusBadGateway, err, "bad gateway")
	}

	resp, err := r.client.Do(upstreamReq)
	if err != nil {
		return turtle.NewHTTPErrorWithInternal(http.StatusBadGateway, err, "bad gateway")
	}
	defer resp.Body.Close()

	if r.Mode == "rewriting" && shouldRewrite(resp.Header.Get(turtle.HeaderContentType), r.RewriteContentTypes) {
		return r.emitRewritten(c, resp)
	}
	return r.emitStreaming(c, resp)
}

// tail strips MountPath from path, the "incoming URL with route stripped" spec §4.5 forwards
// upstream as the request target — a route mounted at "/app" forwards "/app/x" as "/x".
func (r *Route) tail(path string) string {
	if r.MountPath == "" {
		return path
	}
	trimmed := strings.TrimPrefix(path, r.MountPath)
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// buildRequest constructs the upstream request, forwarding the client's method, path and
// query, stripping hop-by-hop headers, and injecting the forwarding headers spec §4.5 names.
func (r *Route) buildRequest(c *turtle.Context) (*http.Request, error) {
	req := c.Request()
	target := r.Upstream + r.tail(req.URL.Path)
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(req.Context(), req.Method, target, strings.NewReader(string(c.Body())))
	if err != nil {
		return nil, err
	}
	upstreamReq.Header = req.Header.Clone()
	for _, h := range hopByHopHeaders {
		upstreamReq.Header.Del(h)
	}
	peer := peerIP(req)
	upstreamReq.Header.Set(turtle.HeaderXHost, req.Host)
	upstreamReq.Header.Set(turtle.HeaderXRealIP, peer)
	if existing := upstreamReq.Header.Get(turtle.HeaderXForwardedFor); existing != "" {
		upstreamReq.Header.Set(turtle.HeaderXForwardedFor, existing+", "+peer)
	} else {
		upstreamReq.Header.Set(turtle.HeaderXForwardedFor, peer)
	}
	upstreamReq.Header.Set(turtle.HeaderXForwardedProto, c.ParsedURL().Scheme)
	upstreamReq.Header.Set(turtle.HeaderXForwardedServer, req.Host)
	return upstreamReq, nil
}

// peerIP is the direct TCP peer's address, deliberately bypassing Context.IP's own
// X-Forwarded-For trust (spec §3 "client IP from X-Forwarded-For last hop or socket peer"):
// the header this function feeds is the one recording that chain, so it must append the
// actual peer, not echo back a hop the client already claimed.
func peerIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// emitStreaming reads the upstream response and hands it to the response emitter (spec §4.5
// "Emit via §4.2"), so a proxied representation gets the same ETag compute/register, 304
// short-circuit, compression and CSV negotiation a locally-produced one would. The body is
// buffered rather than piped straight through, since Emit needs the full length to decide on
// ranging, compression and content negotiation before it writes a single byte.
func (r *Route) emitStreaming(c *turtle.Context, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return turtle.NewHTTPErrorWithInternal(http.StatusBadGateway, err, "bad gateway")
	}

	headers := upstreamHeaders(resp.Header)
	headers[turtle.HeaderVia] = "1.1 turtle.io"

	if r.OnMaxAge != nil {
		if maxAge, ok := parseMaxAge(resp.Header.Get(turtle.HeaderCacheControl)); ok {
			r.OnMaxAge(c.CanonicalURL(), maxAge)
		}
	}

	return turtle.Emit(c, turtle.EmitOptions{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get(turtle.HeaderContentType),
		Headers:     headers,
	})
}

// upstreamHeaders copies resp headers into the single-valued map Emit's header discipline
// consumes, stripping hop-by-hop headers and the upstream Content-Length (Emit recomputes it
// once it knows the final, possibly rewritten or compressed, body size).
func upstreamHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for k, vv := range h {
		if isHopByHop(k) || strings.EqualFold(k, turtle.HeaderContentLength) {
			continue
		}
		headers[k] = strings.Join(vv, ", ")
	}
	return headers
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if name, value, ok := strings.Cut(directive, "="); ok && strings.EqualFold(name, "max-age") {
			if seconds, err := time.ParseDuration(value + "s"); err == nil {
				return seconds, true
			}
		}
	}
	return 0, false
}
