// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package proxy

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/airstand/turtle"
)

// shouldRewrite reports whether contentType matches any of the route's configured rewrite
// patterns (spec §4.5 "rewriting mode" content-type gate).
func shouldRewrite(contentType string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	re, err := regexp.Compile("(?i)" + strings.Join(patterns, "|"))
	if err != nil {
		return false
	}
	return re.MatchString(contentType)
}

// emitRewritten buffers the upstream body (response rewriting can't be streamed without
// knowing the final length) and rewrites absolute references to the upstream origin into
// references to this proxy, either as a JSON substring replacement or, for HTML, by
// rewriting href=/src= attributes with golang.org/x/net/html's tokenizer (spec §4.5
// "RESTful mode"), then hands the result to the response emitter so it gets the same
// ETag/304/compression/CSV treatment as any other representation (spec §4.5 "Emit via §4.2").
func (r *Route) emitRewritten(c *turtle.Context, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return turtle.NewHTTPErrorWithInternal(http.StatusBadGateway, err, "bad gateway")
	}

	publicBase := c.ParsedURL().Scheme + "://" + c.Request().Host + r.MountPath
	contentType := resp.Header.Get(turtle.HeaderContentType)

	var rewritten []byte
	switch {
	case strings.Contains(contentType, turtle.MIMETextHTML):
		rewritten, err = rewriteHTML(body, r.Upstream, publicBase, r.MountPath)
	default:
		rewritten = bytes.ReplaceAll(body, []byte(r.Upstream), []byte(publicBase))
	}
	if err != nil {
		return turtle.NewHTTPErrorWithInternal(http.StatusBadGateway, err, "bad gateway")
	}

	headers := upstreamHeaders(resp.Header)
	headers[turtle.HeaderVia] = "1.1 turtle.io"

	return turtle.Emit(c, turtle.EmitOptions{
		Status:      resp.StatusCode,
		Body:        rewritten,
		ContentType: contentType,
		Headers:     headers,
	})
}

// rewriteHTML walks the document token by token, rewriting href/src/action attribute values
// that start with upstream into publicBase (which already carries the route's mount prefix)
// and prefixing root-relative ones with mountPath (see rewriteAttrs), and re-serializes as it goes — cheaper than a full DOM
// round-trip and avoids a regexp-based approach that would mishandle attribute quoting. A
// final origin-substring pass catches references left inside text nodes and inline scripts,
// the same replacement the non-HTML branch does over the whole body.
func rewriteHTML(body []byte, upstream, publicBase, mountPath string) ([]byte, error) {
	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(body))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return bytes.ReplaceAll(out.Bytes(), []byte(upstream), []byte(publicBase)), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			rewriteAttrs(&tok, upstream, publicBase, mountPath)
			out.WriteString(tok.String())
		default:
			out.Write(z.Raw())
		}
	}
}

// rewriteAttrs rewrites href/src/action attributes on rewritable tags two ways: a value that
// starts with the upstream origin is replaced wholesale with publicBase (spec §4.5 "substring
// replace upstream origin"); a value that starts with "/" (a relative-to-root reference that
// never carried the origin to begin with) is prefixed with the route's mount path on a
// non-root mount (spec §4.5 "for non-root routes prefix absolute internal references
// '/xxx/...' with the route").
func rewriteAttrs(tok *html.Token, upstream, publicBase, mountPath string) {
	if tok.DataAtom != atom.A && tok.DataAtom != atom.Img && tok.DataAtom != atom.Script &&
		tok.DataAtom != atom.Link && tok.DataAtom != atom.Form {
		return
	}
	for i, attr := range tok.Attr {
		if attr.Key != "href" && attr.Key != "src" && attr.Key != "action" {
			continue
		}
		switch {
		case strings.HasPrefix(attr.Val, upstream):
			tok.Attr[i].Val = publicBase + strings.TrimPrefix(attr.Val, upstream)
		case mountPath != "" && strings.HasPrefix(attr.Val, "/") && !strings.HasPrefix(attr.Val, "//"):
			tok.Attr[i].Val = mountPath + attr.Val
		}
	}
}
