// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package fsys implements the file-backed resource handler: path resolution under a
// virtual host's document root, directory indexing, and GET/HEAD/OPTIONS/PUT/POST/DELETE
// (spec §4.4).
package fsys

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spaolacci/murmur3"

	"github.com/airstand/turtle"
)

// Handler serves a virtual host's document root as a CRUD resource tree (spec §4.4
// "file-backed resource handler"). Grounded on the teacher's read-only static file serving
// (aldas-echo's directory-redirect-to-trailing-slash, range delegation via
// http.ServeContent) generalized to the CRUD semantics spec §4.4 requires — the teacher only
// ever serves files read-only; PUT/POST/DELETE are original to this port.
type Handler struct {
	Index []string
	Seed  uint32
}

// New creates a Handler. index is the ordered list of directory-index filenames tried when a
// directory is requested; it defaults to {"index.html"} when empty.
func New(index []string, seed uint32) *Handler {
	if len(index) == 0 {
		index = []string{"index.html"}
	}
	return &Handler{Index: index, Seed: seed}
}

// Handle is installed as Server.FileHandler.
func (h *Handler) Handle(c *turtle.Context) error {
	root := c.VHostRoot()
	if root == "" {
		return turtle.NewHTTPError(http.StatusNotFound, "not found")
	}

	rel := c.ParsedURL().Path
	local, err := h.resolve(root, rel)
	if err != nil {
		return turtle.NewHTTPError(http.StatusNotFound, "not found")
	}

	switch c.Request().Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return h.get(c, local, rel)
	case http.MethodPut:
		return h.put(c, local)
	case http.MethodPost:
		return h.post(c, local)
	case http.MethodDelete:
		return h.delete(c, local)
	default:
		return turtle.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	}
}

// resolve joins root and rel, rejecting any result that escapes root once both are cleaned
// and made absolute (spec §4.4 "path safety" — guards against "..", absolute overrides, and
// symlink-free traversal).
func (h *Handler) resolve(root, rel string) (string, error) {
	cleaned := path.Clean("/" + rel)
	local := filepath.Join(root, filepath.FromSlash(cleaned))

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(local)
	if err != nil {
		return "", err
	}
	if absLocal != absRoot && !strings.HasPrefix(absLocal, absRoot+string(filepath.Separator)) {
		return "", errors.New("fsys: path escapes document root")
	}
	return absLocal, nil
}

func (h *Handler) get(c *turtle.Context, local, rel string) error {
	info, err := os.Stat(local)
	if err != nil {
		return turtle.NewHTTPError(http.StatusNotFound, "not found")
	}

	if info.IsDir() {
		if !strings.HasSuffix(rel, "/") {
			return c.Redirect(http.StatusTemporaryRedirect, rel+"/")
		}
		resolved := false
		for _, name := range h.Index {
			candidate := filepath.Join(local, name)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				local, info, resolved = candidate, fi, true
				break
			}
		}
		if !resolved {
			return turtle.NewHTTPError(http.StatusNotFound, "not found")
		}
	}

	etag := h.computeETag(c.CanonicalURL(), info)
	headers := map[string]string{
		turtle.HeaderETag:         etag,
		turtle.HeaderLastModified: info.ModTime().UTC().Format(http.TimeFormat),
	}
	c.SetLocalPath(local)
	return c.RespondFile(http.StatusOK, local, detectMime(local), headers)
}

// put creates or replaces local with the request body, honoring If-Match (spec §4.4 "PUT
// with If-Match" — 412 on a stale validator). Responds 201 on create, 204 on overwrite
// (spec §4.4 "respond 201 on create or 204 on overwrite").
func (h *Handler) put(c *turtle.Context, local string) error {
	existing, err := os.Stat(local)
	created := err != nil
	if err == nil {
		etag := h.computeETag(c.CanonicalURL(), existing)
		if im := c.Request().Header.Get(turtle.HeaderIfMatch); im != "" && im != "*" && im != etag {
			return turtle.NewHTTPError(http.StatusPreconditionFailed, "etag mismatch")
		}
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(local, c.Body(), 0o644); err != nil {
		return err
	}
	c.Server().Cache.Unregister(c.CanonicalURL())
	if created {
		return c.Respond(http.StatusCreated, nil, nil)
	}
	return c.Respond(http.StatusNoContent, nil, nil)
}

// post creates local, refusing to overwrite an existing resource (spec §4.4 "POST creates").
func (h *Handler) post(c *turtle.Context, local string) error {
	if _, err := os.Stat(local); err == nil {
		return turtle.NewHTTPError(http.StatusConflict, "resource already exists")
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(local, c.Body(), 0o644); err != nil {
		return err
	}
	return c.Respond(http.StatusCreated, nil, nil)
}

func (h *Handler) delete(c *turtle.Context, local string) error {
	if err := os.Remove(local); err != nil {
		if os.IsNotExist(err) {
			return turtle.NewHTTPError(http.StatusNotFound, "not found")
		}
		return err
	}
	c.Server().Cache.Unregister(c.CanonicalURL())
	return c.Respond(http.StatusNoContent, nil, nil)
}

// computeETag hashes the canonical URL, size and modification time with mmh3, the same
// validator family the representation cache uses (spec §3, §8).
func (h *Handler) computeETag(url string, info os.FileInfo) string {
	hasher := murmur3.New64WithSeed(h.Seed)
	hasher.Write([]byte(url))
	hasher.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	hasher.Write([]byte(info.ModTime().UTC().Format(http.TimeFormat)))
	return strconv.FormatUint(hasher.Sum64(), 16)
}

// detectMime prefers the stdlib extension table and falls back to content sniffing via
// gabriel-vasile/mimetype for extensionless or unregistered file types.
func detectMime(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return turtle.MIMEOctetStream
}
