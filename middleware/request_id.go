// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/airstand/turtle"
)

// RequestIDConfig defines the config for RequestID middleware.
type RequestIDConfig struct {
	Skipper Skipper

	// Generator produces an ID. Defaults to a random 32-character hex string.
	Generator func() string

	// RequestIDHandler, if set, is invoked with the resolved request ID.
	RequestIDHandler func(c *turtle.Context, requestID string)

	// TargetHeader is the header the ID is read from and written to. Defaults to
	// turtle.HeaderXRequestID.
	TargetHeader string
}

// RequestID returns a middleware that reads the request ID from TargetHeader or generates
// one, writes it back to the response, and attaches it to the request's scoped logger.
func RequestID() turtle.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig returns a RequestID middleware built from config.
func RequestIDWithConfig(config RequestIDConfig) turtle.HandlerFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.Generator == nil {
		config.Generator = randomHex(32)
	}
	if config.TargetHeader == "" {
		config.TargetHeader = turtle.HeaderXRequestID
	}

	return func(c *turtle.Context) error {
		if config.Skipper(c) {
			return nil
		}

		rid := c.Request().Header.Get(config.TargetHeader)
		if rid == "" {
			rid = config.Generator()
		}
		c.Response().Header().Set(config.TargetHeader, rid)
		c.SetLogger(c.Logger().With("request_id", rid))
		if config.RequestIDHandler != nil {
			config.RequestIDHandler(c, rid)
		}
		return nil
	}
}

func randomHex(n int) func() string {
	return func() string {
		buf := make([]byte, n/2)
		if _, err := rand.Read(buf); err != nil {
			return ""
		}
		return hex.EncodeToString(buf)
	}
}
