// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware

import (
	"net/http"

	"github.com/airstand/turtle"
)

// MethodOverrideConfig defines the config for MethodOverride middleware.
type MethodOverrideConfig struct {
	Skipper Skipper

	// Getter gets the overridden method from the request. Defaults to
	// MethodFromHeader(turtle.HeaderXHTTPMethodOverride).
	Getter MethodOverrideGetter
}

// MethodOverrideGetter returns the overridden method from a request, or "" for none.
type MethodOverrideGetter func(*turtle.Context) string

// DefaultMethodOverrideConfig is the default MethodOverride middleware config.
var DefaultMethodOverrideConfig = MethodOverrideConfig{
	Skipper: DefaultSkipper,
	Getter:  MethodFromHeader(turtle.HeaderXHTTPMethodOverride),
}

// MethodOverride returns a MethodOverride middleware with the default config.
//
// For security reasons, only POST requests are eligible for the override.
func MethodOverride() turtle.HandlerFunc {
	return MethodOverrideWithConfig(DefaultMethodOverrideConfig)
}

// MethodOverrideWithConfig returns a MethodOverride middleware built from config.
func MethodOverrideWithConfig(config MethodOverrideConfig) turtle.HandlerFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultMethodOverrideConfig.Skipper
	}
	if config.Getter == nil {
		config.Getter = DefaultMethodOverrideConfig.Getter
	}

	return func(c *turtle.Context) error {
		if config.Skipper(c) {
			return nil
		}
		req := c.Request()
		if req.Method == http.MethodPost {
			if m := config.Getter(c); m != "" {
				req.Method = m
			}
		}
		return nil
	}
}

// MethodFromHeader gets the overridden method from a request header.
func MethodFromHeader(header string) MethodOverrideGetter {
	return func(c *turtle.Context) string {
		return c.Request().Header.Get(header)
	}
}

// MethodFromForm gets the overridden method from a form parameter.
func MethodFromForm(param string) MethodOverrideGetter {
	return func(c *turtle.Context) string {
		return c.Request().FormValue(param)
	}
}

// MethodFromQuery gets the overridden method from a query parameter.
func MethodFromQuery(param string) MethodOverrideGetter {
	return func(c *turtle.Context) string {
		return c.ParsedURL().Query().Get(param)
	}
}
