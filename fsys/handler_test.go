// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package fsys_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airstand/turtle"
	"github.com/airstand/turtle/fsys"
)

func newFileServer(t *testing.T, root string) *turtle.Server {
	t.Helper()
	handler := fsys.New(nil, 0)
	s := turtle.New(turtle.Options{Default: "all", Root: root})
	s.FileHandler = handler.Handle
	return s
}

func TestHandler_GetServesFileWithETag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi there", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(turtle.HeaderETag))
}

func TestHandler_GetDirectoryRedirectsWithoutTrailingSlash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "index.html"), []byte("index"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/sub", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/sub/", w.Header().Get(turtle.HeaderLocation))
}

func TestHandler_GetDirectoryServesIndexFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "index.html"), []byte("index"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/sub/", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "index", w.Body.String())
}

func TestHandler_GetMissingFileReturns404(t *testing.T) {
	dir := t.TempDir()
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/nope.txt", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/../"+filepath.Base(outside)+"/secret.txt", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// None of the tests below pre-register a route for the path they exercise: the fallback
// handler reaches PUT/POST/DELETE on a fresh path entirely through the self-registering
// Allow-set fallback (spec §4.1 "Allow-set self-registration"), the same way a freshly
// deployed server would.

func TestHandler_PutCreatesThenRejectsStaleIfMatch(t *testing.T) {
	dir := t.TempDir()
	s := newFileServer(t, dir)

	putReq := httptest.NewRequest(http.MethodPut, "/doc.txt", strings.NewReader("v1"))
	putW := httptest.NewRecorder()
	s.ServeHTTP(putW, putReq)
	assert.Equal(t, http.StatusCreated, putW.Code)

	staleReq := httptest.NewRequest(http.MethodPut, "/doc.txt", strings.NewReader("v2"))
	staleReq.Header.Set(turtle.HeaderIfMatch, `"stale-etag"`)
	staleW := httptest.NewRecorder()
	s.ServeHTTP(staleW, staleReq)
	assert.Equal(t, http.StatusPreconditionFailed, staleW.Code)

	overwriteReq := httptest.NewRequest(http.MethodPut, "/doc.txt", strings.NewReader("v3"))
	overwriteW := httptest.NewRecorder()
	s.ServeHTTP(overwriteW, overwriteReq)
	assert.Equal(t, http.StatusNoContent, overwriteW.Code)
}

func TestHandler_PostRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exists.txt"), []byte("already here"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodPost, "/exists.txt", strings.NewReader("new"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_PostCreatesNewResource(t *testing.T) {
	dir := t.TempDir()
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodPost, "/fresh.txt", strings.NewReader("new"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandler_DeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gone.txt"), []byte("x"), 0o644))
	s := newFileServer(t, dir)

	req := httptest.NewRequest(http.MethodDelete, "/gone.txt", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := os.Stat(filepath.Join(dir, "gone.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandler_AllowHeaderIsPopulatedAfterFirstHit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res.txt"), []byte("x"), 0o644))
	s := newFileServer(t, dir)

	getReq := httptest.NewRequest(http.MethodGet, "/res.txt", nil)
	getW := httptest.NewRecorder()
	s.ServeHTTP(getW, getReq)
	assert.Equal(t, http.StatusOK, getW.Code)

	patchReq := httptest.NewRequest(http.MethodPatch, "/res.txt", nil)
	patchW := httptest.NewRecorder()
	s.ServeHTTP(patchW, patchReq)
	assert.Equal(t, http.StatusMethodNotAllowed, patchW.Code)
	allow := patchW.Header().Get(turtle.HeaderAllow)
	assert.Contains(t, allow, "GET")
	assert.Contains(t, allow, "PUT")
	assert.Contains(t, allow, "POST")
	assert.Contains(t, allow, "DELETE")
}

