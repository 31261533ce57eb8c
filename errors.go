// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidCertOrKeyType is returned by StartConfig.StartTLS when a cert or key argument is
// neither a file path string nor raw []byte content.
var ErrInvalidCertOrKeyType = errors.New("turtle: cert/key must be a file path string or []byte content")

// HTTPError represents an error carrying an HTTP status code, optionally wrapping the
// underlying cause that produced it (spec §4.1 "error handling").
type HTTPError struct {
	Code     int
	Message  string
	Internal error
}

// NewHTTPError creates an HTTPError, defaulting Message to the status's canonical text.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

// NewHTTPErrorWithInternal creates an HTTPError carrying an internal cause, preserved for
// logging but never sent to the client (spec §4.1 "error's cause is logged, not echoed").
func NewHTTPErrorWithInternal(code int, internal error, message string) *HTTPError {
	e := NewHTTPError(code, message)
	e.Internal = internal
	return e
}

func (e *HTTPError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("code=%d, message=%s, internal=%v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

// Unwrap exposes the internal cause to errors.Is/errors.As.
func (e *HTTPError) Unwrap() error { return e.Internal }

// Wrap attaches an internal cause and returns the receiver for chaining.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Internal = err
	return e
}

// statusByName resolves an error whose message names a known HTTP status (spec §4.1 "error's
// message parses as a known code name") back to its numeric code, e.g. "not found" -> 404.
func statusByName(name string) (int, bool) {
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" && strings.EqualFold(text, name) {
			return code, true
		}
	}
	return 0, false
}

// DefaultHTTPErrorHandler renders a terminal error response. Handlers may install their own
// on Server.HTTPErrorHandler; this one backs New's default.
func DefaultHTTPErrorHandler(c *Context, err error) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()

	var he *HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		message = he.Message
	default:
		if resolved, ok := statusByName(err.Error()); ok {
			code = resolved
			message = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error("turtle: unhandled error", "error", err, "status", code)
	}
	_ = c.Error(code, message)
}
