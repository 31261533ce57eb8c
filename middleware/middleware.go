// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package middleware collects HandlerFunc constructors that plug into a route's handler
// chain ahead of its terminal handler.
package middleware

import "github.com/airstand/turtle"

// Skipper decides whether a middleware should be bypassed for a request.
type Skipper func(c *turtle.Context) bool

// DefaultSkipper never skips.
func DefaultSkipper(*turtle.Context) bool { return false }
