// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airstand/turtle"
	"github.com/airstand/turtle/middleware"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Handle("all", http.MethodGet, "/ping",
		middleware.RequestID(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			return c.Respond(http.StatusOK, nil, nil)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get(turtle.HeaderXRequestID))
}

func TestRequestID_PreservesIncomingHeader(t *testing.T) {
	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Handle("all", http.MethodGet, "/ping",
		middleware.RequestID(),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			return c.Respond(http.StatusOK, nil, nil)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(turtle.HeaderXRequestID, "fixed-id")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get(turtle.HeaderXRequestID))
}

func TestRequestID_InvokesHandlerCallback(t *testing.T) {
	var seen string
	cfg := middleware.RequestIDConfig{
		RequestIDHandler: func(c *turtle.Context, requestID string) { seen = requestID },
	}

	s := turtle.New(turtle.Options{Default: "all", Root: "."})
	s.Handle("all", http.MethodGet, "/ping",
		middleware.RequestIDWithConfig(cfg),
		turtle.HandlerFunc(func(c *turtle.Context) error {
			return c.Respond(http.StatusOK, nil, nil)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(turtle.HeaderXRequestID, "abc")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, "abc", seen)
}
