// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"sync"

	"github.com/airstand/turtle"
)

// DecompressConfig defines the config for Decompress middleware.
type DecompressConfig struct {
	Skipper Skipper

	// GzipDecompressPool provides the sync.Pool used to create/store gzip readers.
	GzipDecompressPool Decompressor
}

// GZIPEncoding is the Content-Encoding value this middleware acts on.
const GZIPEncoding string = "gzip"

// Decompressor is used to get the sync.Pool the middleware draws gzip readers from.
type Decompressor interface {
	gzipDecompressPool() sync.Pool
}

// DefaultGzipDecompressPool is the default Decompressor implementation.
type DefaultGzipDecompressPool struct{}

func (d *DefaultGzipDecompressPool) gzipDecompressPool() sync.Pool {
	return sync.Pool{New: func() interface{} { return new(gzip.Reader) }}
}

// Decompress decompresses a gzip-encoded request body with default config.
func Decompress() turtle.HandlerFunc {
	return DecompressWithConfig(DecompressConfig{})
}

// DecompressWithConfig returns a Decompress handler built from config.
func DecompressWithConfig(config DecompressConfig) turtle.HandlerFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.GzipDecompressPool == nil {
		config.GzipDecompressPool = &DefaultGzipDecompressPool{}
	}
	pool := config.GzipDecompressPool.gzipDecompressPool()

	return func(c *turtle.Context) error {
		if config.Skipper(c) {
			return nil
		}
		if c.Request().Header.Get(turtle.HeaderContentEncoding) != GZIPEncoding {
			return nil
		}
		// Context.ReadBody runs ahead of the handler chain (spec §4.1 "Body accumulation"),
		// so by the time this runs the compressed bytes are already buffered in Context.Body
		// rather than readable off Request().Body; decompress in place and write it back.
		if len(c.Body()) == 0 {
			return nil
		}

		i := pool.Get()
		gr, ok := i.(*gzip.Reader)
		if !ok || gr == nil {
			return turtle.NewHTTPError(http.StatusInternalServerError, "decompress: invalid pool item")
		}
		defer pool.Put(gr)

		if err := gr.Reset(bytes.NewReader(c.Body())); err != nil {
			if err == io.EOF { // empty body, nothing to decompress
				return nil
			}
			return err
		}
		defer gr.Close()

		decoded, err := io.ReadAll(gr)
		if err != nil {
			return err
		}
		c.SetBody(decoded)
		return nil
	}
}
