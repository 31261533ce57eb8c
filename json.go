// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// DefaultJSONSerializer implements JSON encoding using encoding/json.
type DefaultJSONSerializer struct{}

// Serialize converts an interface into JSON and writes it to the response, honoring an
// explicit indent.
func (d DefaultJSONSerializer) Serialize(c *Context, target any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(target)
}

// Deserialize reads JSON from the accumulated request body and converts it into target,
// operating on Context.Body (populated by ReadBody during request preparation) rather than
// Request().Body, which has already been drained by the time any handler runs.
func (d DefaultJSONSerializer) Deserialize(c *Context, target any) error {
	err := json.Unmarshal(c.Body(), target)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return NewHTTPErrorWithInternal(
			http.StatusBadRequest,
			err,
			fmt.Sprintf("unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", ute.Type, ute.Value, ute.Field, ute.Offset),
		)
	} else if se, ok := err.(*json.SyntaxError); ok {
		return NewHTTPErrorWithInternal(http.StatusBadRequest,
			err,
			fmt.Sprintf("syntax error: offset=%v, error=%v", se.Offset, se.Error()),
		)
	}
	return err
}

// marshalJSON encodes v, using the indent width negotiated from the request's Accept header
// ("application/json; indent=2") when present, falling back to Options.JSONIndent (spec
// §4.2 "JSON indent negotiation").
func marshalJSON(c *Context, v any) ([]byte, error) {
	indent := jsonIndent(c)
	if indent == "" {
		return json.Marshal(v)
	}
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(buf.String(), "\n")), nil
}

func jsonIndent(c *Context) string {
	accept := c.Request().Header.Get(HeaderAccept)
	for _, part := range strings.Split(accept, ";") {
		part = strings.TrimSpace(part)
		if n, ok := strings.CutPrefix(part, "indent="); ok {
			if width, err := strconv.Atoi(n); err == nil && width >= 0 && width <= 16 {
				return strings.Repeat(" ", width)
			}
		}
	}
	if n := c.server.Options.JSONIndent; n != "" {
		return n
	}
	return ""
}
