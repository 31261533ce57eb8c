// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Response wraps an http.ResponseWriter and implements its interface to be used
// by an HTTP handler to construct an HTTP response.
// See: https://golang.org/pkg/net/http/#ResponseWriter
type Response struct {
	http.ResponseWriter
	logger *slog.Logger
	// beforeFuncs are functions that are called just before the response (status) is written. Happens only once, during WriteHeader call.
	beforeFuncs []func()
	// afterFuncs are functions that are called just after the response is written. During every `Write` method call.
	afterFuncs []func()
	Status     int
	Size       int64
	Committed  bool
}

// NewResponse creates a new instance of Response.
func NewResponse(w http.ResponseWriter, logger *slog.Logger) (r *Response) {
	return &Response{ResponseWriter: w, logger: logger}
}

// Before registers a function which is called just before the response (status) is written.
func (r *Response) Before(fn func()) {
	r.beforeFuncs = append(r.beforeFuncs, fn)
}

// After registers a function which is called just after the response is written.
func (r *Response) After(fn func()) {
	r.afterFuncs = append(r.afterFuncs, fn)
}

// WriteHeader sends an HTTP response header with status code. If WriteHeader is
// not called explicitly, the first call to Write will trigger an implicit
// WriteHeader(http.StatusOK). Thus explicit calls to WriteHeader are mainly
// used to send error codes.
func (r *Response) WriteHeader(code int) {
	if r.Committed {
		r.logger.Error("turtle: response already written to client")
		return
	}
	r.Status = code
	for _, fn := range r.beforeFuncs {
		fn()
	}
	r.ResponseWriter.WriteHeader(r.Status)
	r.Committed = true
}

// Write writes the data to the connection as part of an HTTP reply.
func (r *Response) Write(b []byte) (n int, err error) {
	if !r.Committed {
		if r.Status == 0 {
			r.Status = http.StatusOK
		}
		r.WriteHeader(r.Status)
	}
	n, err = r.ResponseWriter.Write(b)
	r.Size += int64(n)
	for _, fn := range r.afterFuncs {
		fn()
	}
	return
}

// Unwrap returns the original http.ResponseWriter.
// ResponseController can be used to access the original http.ResponseWriter.
// See [https://go.dev/blog/go1.20]
func (r *Response) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *Response) reset(w http.ResponseWriter) {
	r.beforeFuncs = nil
	r.afterFuncs = nil
	r.ResponseWriter = w
	r.Size = 0
	r.Status = http.StatusOK
	r.Committed = false
}

// UnwrapResponse unwraps a given ResponseWriter down to this package's Response. rw has to
// implement `Unwrap() http.ResponseWriter`.
func UnwrapResponse(rw http.ResponseWriter) (*Response, error) {
	for {
		switch t := rw.(type) {
		case *Response:
			return t, nil
		case interface{ Unwrap() http.ResponseWriter }:
			rw = t.Unwrap()
			continue
		default:
			return nil, errors.New("ResponseWriter does not implement 'Unwrap() http.ResponseWriter' interface")
		}
	}
}

// SideFileStore persists the compressed representation of a response so it can be served
// again without recompressing (spec §4.2 "side files"). The cache package binds this to
// on-disk .gz/.zz files; Server falls back to noopSideFiles when none is wired.
type SideFileStore interface {
	Open(etag, ext string) (io.ReadCloser, int64, bool)
	Create(etag, ext string) (io.WriteCloser, error)
}

type noopSideFiles struct{}

func (noopSideFiles) Open(string, string) (io.ReadCloser, int64, bool) { return nil, 0, false }
func (noopSideFiles) Create(string, string) (io.WriteCloser, error) {
	return nil, errors.New("turtle: no side-file store configured")
}

// EmitOptions is the input to Emit: either a Body, a JSON value to encode (and possibly
// project to CSV), or a FilePath backing the representation.
type EmitOptions struct {
	Status      int
	Body        []byte
	JSON        any
	FilePath    string
	ContentType string
	Headers     map[string]string
}

var compressibleType = regexp.MustCompile(`(?i)javascript|json|text|xml`)

// Emit runs status, body (or file), and headers through the response pipeline's header
// discipline, content negotiation, range handling, compression and cache write-through
// (spec §4.2). It is the single path every Context responder (Respond, RespondFile, JSON,
// Error, Redirect) funnels through.
func Emit(c *Context, opts EmitOptions) error {
	req := c.Request()
	res := c.Response()
	if res.Committed {
		return nil
	}

	status := opts.Status
	if status == 0 {
		status = http.StatusOK
	}

	body := opts.Body
	contentType := opts.ContentType
	headers := cloneStringMap(opts.Headers)

	if opts.JSON != nil {
		encoded, ct, err := encodeNegotiated(c, opts.JSON, status, headers)
		if err != nil {
			return err
		}
		body = encoded
		contentType = ct
	}

	isFile := opts.FilePath != ""
	var fileSize int64
	if isFile {
		info, err := os.Stat(opts.FilePath)
		if err != nil {
			return writeFinal(c, NewHTTPError(http.StatusNotFound, "not found"), nil)
		}
		fileSize = info.Size()
		if contentType == "" {
			contentType = detectContentType(opts.FilePath)
		}
	} else if contentType == "" {
		contentType = detectBodyContentType(body)
	}

	// A JSON body handed over as bytes (e.g. a proxied upstream response) gets the same CSV
	// negotiation as a JSON value.
	if !isFile && opts.JSON == nil && req.Method == http.MethodGet && status == http.StatusOK &&
		strings.Contains(req.Header.Get(HeaderAccept), MIMETextCSV) && strings.Contains(contentType, "json") {
		var decoded any
		if json.Unmarshal(body, &decoded) == nil {
			if encoded, ct, err := encodeNegotiated(c, decoded, status, headers); err == nil && ct == MIMETextCSV {
				body, contentType = encoded, ct
			}
		}
	}

	redirectVerbatim := status >= 300 && status < 400 && status != http.StatusNotModified
	total := int64(len(body))
	if isFile {
		total = fileSize
	}

	rangeHeader := req.Header.Get(HeaderRange)
	if rangeHeader != "" && !redirectVerbatim && req.Method == http.MethodGet && status == http.StatusOK {
		start, end, ok := parseRange(rangeHeader, total)
		if !ok {
			headers[HeaderContentRange] = fmt.Sprintf("bytes */%d", total)
			return writeFinal(c, NewHTTPError(http.StatusRequestedRangeNotSatisfiable, "invalid range"), headers)
		}
		status = http.StatusPartialContent
		headers[HeaderContentRange] = fmt.Sprintf("bytes %d-%d/%d", start, end, total)
		if isFile {
			f, err := os.Open(opts.FilePath)
			if err != nil {
				return writeFinal(c, NewHTTPError(http.StatusNotFound, "not found"), nil)
			}
			defer f.Close()
			if _, err := f.Seek(start, io.SeekStart); err != nil {
				return err
			}
			body = make([]byte, end-start+1)
			if _, err := io.ReadFull(f, body); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
		} else {
			body = body[start : end+1]
		}
		isFile = false
	}

	if req.Method == http.MethodHead || req.Method == http.MethodOptions {
		body = nil
		isFile = false
	}
	if req.Method == http.MethodOptions {
		// spec §4.2 "for OPTIONS, also clear content-length and content-type": the
		// underlying resolution's status (404 for a missing file, 200 for a match)
		// carries through, but the body and its content headers never do.
		contentType = ""
	}

	decorateHeaders(c, status, headers, redirectVerbatim)

	encoding := ""
	if !redirectVerbatim && (status == http.StatusOK || status == http.StatusPartialContent) {
		encoding = chooseEncoding(c, contentType)
	}

	hdr := res.Header()
	applyHeaders(hdr, headers)
	if contentType != "" && status != http.StatusNoContent && status != http.StatusNotModified {
		hdr.Set(HeaderContentType, contentType)
	}

	etag := hdr.Get(HeaderETag)
	if etag == "" && req.Method == http.MethodGet && status == http.StatusOK && len(body) > 0 &&
		hdr.Get(HeaderXRateLimitLimit) == "" {
		etag = mmh3(c.CanonicalURL(), strconv.Itoa(len(body)), hdr.Get(HeaderLastModified), string(body))
		hdr.Set(HeaderETag, etag)
	}

	switch {
	case isFile && encoding != "":
		if err := emitCompressedFile(c, status, encoding, opts.FilePath, etag); err != nil {
			return err
		}
	case isFile:
		hdr.Set(HeaderTransferEncoding, "chunked")
		hdr.Del(HeaderContentLength)
		res.WriteHeader(status)
		if req.Method != http.MethodHead {
			f, err := os.Open(opts.FilePath)
			if err != nil {
				return err
			}
			defer f.Close()
			_, _ = io.Copy(res, f)
		}
	case encoding != "" && len(body) > 0:
		compressed, err := compressBuffer(encoding, body)
		if err != nil {
			return err
		}
		if err := persistSideFile(c, etag, encoding, compressed); err != nil {
			c.Logger().Warn("turtle: failed writing compression side file", "error", err)
		}
		hdr.Set(HeaderContentEncoding, encoding)
		hdr.Set(HeaderContentLength, strconv.Itoa(len(compressed)))
		res.WriteHeader(status)
		if req.Method != http.MethodHead {
			_, _ = res.Write(compressed)
		}
	default:
		if body != nil {
			hdr.Set(HeaderContentLength, strconv.Itoa(len(body)))
		} else if req.Method == http.MethodOptions {
			hdr.Set(HeaderContentLength, "0")
		}
		res.WriteHeader(status)
		if req.Method != http.MethodHead && len(body) > 0 {
			_, _ = res.Write(body)
		}
	}

	registerCacheEntry(c, status, hdr, etag, contentType)
	return nil
}

// writeFinal short-circuits Emit for the error paths discovered while preparing a response
// (missing file, unsatisfiable range) by re-entering through Emit with a plain body so the
// same header discipline applies.
func writeFinal(c *Context, herr *HTTPError, extra map[string]string) error {
	headers := cloneStringMap(extra)
	return Emit(c, EmitOptions{Status: herr.Code, Body: []byte(herr.Message), Headers: headers})
}

// encodeNegotiated serializes a Go value as JSON (indented per Accept, spec §4.2) or, when
// the client asked for text/csv and the value can be projected into rows, as CSV with a
// Content-Disposition attachment header (spec §4.2 "CSV projection").
func encodeNegotiated(c *Context, v any, status int, headers map[string]string) ([]byte, string, error) {
	accept := c.Request().Header.Get(HeaderAccept)
	if c.Request().Method == http.MethodGet && status == http.StatusOK && strings.Contains(accept, MIMETextCSV) {
		if rows := normalizeRows(v); rows != nil {
			encoded, err := jsonToCSV(v)
			if err != nil {
				return nil, "", err
			}
			headers[HeaderContentDisposition] = fmt.Sprintf("attachment; filename=%q", csvFilename(c.ParsedURL()))
			return encoded, MIMETextCSV, nil
		}
	}
	encoded, err := marshalJSON(c, v)
	if err != nil {
		return nil, "", err
	}
	return encoded, MIMEApplicationJSON, nil
}

// decorateHeaders applies the composition and stripping rules spec §4.2 lists for every
// response that isn't a verbatim redirect: config defaults first, then request-derived
// overrides (Allow, Date, CORS, cache directives, status-specific header removal).
func decorateHeaders(c *Context, status int, headers map[string]string, redirectVerbatim bool) {
	if redirectVerbatim {
		return
	}

	base := cloneStringMap(c.server.Options.Headers)
	for k, v := range headers {
		base[k] = v
	}
	for k, v := range base {
		headers[k] = v
	}

	if allow := c.Allow(); allow != "" {
		headers[HeaderAllow] = allow
	}
	if _, ok := headers[HeaderDate]; !ok {
		headers[HeaderDate] = time.Now().UTC().Format(http.TimeFormat)
	}
	headers[HeaderXResponseTime] = c.Elapsed().String()

	if c.CORS() {
		headers[HeaderAccessControlAllowOrigin] = c.Request().Header.Get(HeaderOrigin)
		headers[HeaderAccessControlAllowCredentials] = "true"
		headers[HeaderAccessControlAllowMethods] = headers[HeaderAllow]
	} else {
		delete(headers, HeaderAccessControlAllowOrigin)
		delete(headers, HeaderAccessControlAllowCredentials)
		delete(headers, HeaderAccessControlAllowMethods)
	}

	getLike := c.Request().Method == http.MethodGet || c.Request().Method == http.MethodHead
	if _, limited := headers[HeaderXRateLimitLimit]; limited {
		headers[HeaderCacheControl] = "no-cache"
		delete(headers, HeaderETag)
		delete(headers, HeaderLastModified)
	} else if !getLike || status >= 400 {
		delete(headers, HeaderCacheControl)
		delete(headers, HeaderETag)
		delete(headers, HeaderLastModified)
	}

	if status == http.StatusNotModified {
		for _, h := range []string{HeaderAcceptRanges, HeaderContentEncoding, HeaderContentLength,
			HeaderContentType, HeaderDate, HeaderTransferEncoding, HeaderLastModified} {
			delete(headers, h)
		}
	}

	if status == http.StatusNotFound || status >= http.StatusInternalServerError {
		delete(headers, HeaderAcceptRanges)
	} else if getLike {
		headers[HeaderAcceptRanges] = "bytes"
	}

	if _, ok := headers[HeaderContentEncoding]; !ok {
		if _, ok := headers[HeaderTransferEncoding]; !ok {
			headers[HeaderTransferEncoding] = "identity"
		}
	}
}

func chooseEncoding(c *Context, contentType string) string {
	if !c.server.Options.Compress {
		return ""
	}
	if !compressibleType.MatchString(contentType) {
		return ""
	}
	if strings.Contains(c.Request().UserAgent(), "MSIE") {
		return ""
	}
	accept := c.Request().Header.Get(HeaderAcceptEncoding)
	switch {
	case strings.Contains(accept, "gzip"):
		return "gzip"
	case strings.Contains(accept, "deflate"):
		return "deflate"
	default:
		return ""
	}
}

func compressBuffer(encoding string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	if encoding == "gzip" {
		w = gzip.NewWriter(&buf)
	} else {
		w = zlib.NewWriter(&buf)
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sideFileExt(encoding string) string {
	if encoding == "gzip" {
		return "gz"
	}
	return "zz"
}

func persistSideFile(c *Context, etag, encoding string, compressed []byte) error {
	if etag == "" {
		return nil
	}
	w, err := c.server.SideFiles.Create(etag, sideFileExt(encoding))
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(compressed)
	return err
}

// emitCompressedFile streams a file-backed response through the chosen compressor while
// checking the side-file store first, so a repeat request for the same representation is
// served straight from disk instead of recompressing (spec §4.2 "emission modes").
func emitCompressedFile(c *Context, status int, encoding, path, etag string) error {
	res := c.Response()
	hdr := res.Header()

	if etag != "" {
		if r, size, ok := c.server.SideFiles.Open(etag, sideFileExt(encoding)); ok {
			defer r.Close()
			hdr.Set(HeaderContentEncoding, encoding)
			hdr.Set(HeaderContentLength, strconv.FormatInt(size, 10))
			res.WriteHeader(status)
			if c.Request().Method != http.MethodHead {
				_, _ = io.Copy(res, r)
			}
			return nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	compressed, err := compressBuffer(encoding, data)
	if err != nil {
		return err
	}
	if err := persistSideFile(c, etag, encoding, compressed); err != nil {
		c.Logger().Warn("turtle: failed writing compression side file", "error", err)
	}
	hdr.Set(HeaderContentEncoding, encoding)
	hdr.Set(HeaderContentLength, strconv.Itoa(len(compressed)))
	res.WriteHeader(status)
	if c.Request().Method != http.MethodHead {
		_, _ = res.Write(compressed)
	}
	return nil
}

// registerCacheEntry writes the representation cache through on successful GET responses
// that carried a strong validator, and arranges invalidation when the response was backed by
// a local file (spec §4.2 "cache write-through", §4.6).
func registerCacheEntry(c *Context, status int, hdr http.Header, etag, contentType string) {
	if c.Request().Method != http.MethodGet {
		return
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		return
	}
	if etag == "" {
		return
	}
	entry := Entry{
		ETag:      etag,
		Headers:   hdr.Clone(),
		Mimetype:  contentType,
		Timestamp: time.Now().Unix(),
	}
	c.server.Cache.Register(c.CanonicalURL(), entry)
	if path := c.LocalPath(); path != "" {
		c.server.Watch.Watch(c.CanonicalURL(), path)
	}
}

func parseRange(header string, total int64) (start, end int64, ok bool) {
	if total <= 0 || !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.SplitN(strings.TrimPrefix(header, "bytes="), "-", 2)
	if len(spec) != 2 {
		return 0, 0, false
	}
	if spec[0] == "" {
		n, err := strconv.ParseInt(spec[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > total {
			n = total
		}
		return total - n, total - 1, true
	}
	s, err := strconv.ParseInt(spec[0], 10, 64)
	if err != nil || s < 0 || s >= total {
		return 0, 0, false
	}
	e := total - 1
	if spec[1] != "" {
		parsed, err := strconv.ParseInt(spec[1], 10, 64)
		if err != nil || parsed <= s {
			return 0, 0, false
		}
		e = parsed
	}
	if e >= total {
		e = total - 1
	}
	return s, e, true
}

func detectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return MIMEOctetStream
}

func detectBodyContentType(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return MIMETextPlain
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return MIMEApplicationJSON
	}
	return MIMETextPlain
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func applyHeaders(hdr http.Header, m map[string]string) {
	for k, v := range m {
		if v == "" {
			hdr.Del(k)
			continue
		}
		hdr.Set(k, v)
	}
}
