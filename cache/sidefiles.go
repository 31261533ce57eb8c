// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package cache

import (
	"io"
	"os"
	"path/filepath"
)

// SideFiles persists compressed representations to <dir>/<etag>.<ext> (gz or zz) and
// implements turtle.SideFileStore. Writes land through a temp-file-then-rename, the same
// atomic-write pattern danielloader-oci-pull-through's filesystem cache uses for its blobs,
// so a reader never observes a partially written side file.
type SideFiles struct {
	dir string
}

// NewSideFiles creates (if needed) dir and returns a SideFiles rooted there.
func NewSideFiles(dir string) (*SideFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &SideFiles{dir: dir}, nil
}

func (s *SideFiles) path(etag, ext string) string {
	return filepath.Join(s.dir, etag+"."+ext)
}

// Open implements turtle.SideFileStore.
func (s *SideFiles) Open(etag, ext string) (io.ReadCloser, int64, bool) {
	f, err := os.Open(s.path(etag, ext))
	if err != nil {
		return nil, 0, false
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, false
	}
	return f, info.Size(), true
}

// Create implements turtle.SideFileStore.
func (s *SideFiles) Create(etag, ext string) (io.WriteCloser, error) {
	tmp, err := os.CreateTemp(s.dir, "."+etag+"-*.tmp")
	if err != nil {
		return nil, err
	}
	return &atomicFile{tmp: tmp, final: s.path(etag, ext)}, nil
}

type atomicFile struct {
	tmp   *os.File
	final string
}

func (a *atomicFile) Write(p []byte) (int, error) { return a.tmp.Write(p) }

func (a *atomicFile) Close() error {
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return err
	}
	return os.Rename(a.tmp.Name(), a.final)
}
