// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestContext() *Context {
	s := New(Options{Default: "all", Root: "."})
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	c := s.newContext()
	c.reset(req, w)
	return c
}

func TestRunChain_StopsRegularHandlersOnceErrored(t *testing.T) {
	var ran []string
	records := []handlerRecord{
		newHandlerRecord("a", HandlerFunc(func(c *Context) error {
			ran = append(ran, "a")
			return errors.New("boom")
		})),
		newHandlerRecord("b", HandlerFunc(func(c *Context) error {
			ran = append(ran, "b")
			return nil
		})),
		newHandlerRecord("c", ErrorHandlerFunc(func(err error, c *Context) error {
			ran = append(ran, "c")
			return err
		})),
	}

	err := runChain(newTestContext(), records)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"a", "c"}, ran)
}

func TestRunChain_ErrorHandlerCanRecover(t *testing.T) {
	records := []handlerRecord{
		newHandlerRecord("a", HandlerFunc(func(c *Context) error {
			return errors.New("boom")
		})),
		newHandlerRecord("b", ErrorHandlerFunc(func(err error, c *Context) error {
			return nil
		})),
		newHandlerRecord("c", HandlerFunc(func(c *Context) error {
			return nil
		})),
	}

	// once recovered, subsequent regular handlers run again.
	var thirdRan bool
	records[2] = newHandlerRecord("c", HandlerFunc(func(c *Context) error {
		thirdRan = true
		return nil
	}))

	err := runChain(newTestContext(), records)
	assert.NoError(t, err)
	assert.True(t, thirdRan)
}

func TestRunChain_StopsOnceResponseCommitted(t *testing.T) {
	var secondRan bool
	records := []handlerRecord{
		newHandlerRecord("a", HandlerFunc(func(c *Context) error {
			return c.Respond(200, []byte("ok"), nil)
		})),
		newHandlerRecord("b", HandlerFunc(func(c *Context) error {
			secondRan = true
			return nil
		})),
	}

	c := newTestContext()
	err := runChain(c, records)
	assert.NoError(t, err)
	assert.False(t, secondRan)
	assert.True(t, c.Response().Committed)
}

func TestNewHandlerRecord_PanicsOnUnknownType(t *testing.T) {
	assert.Panics(t, func() {
		newHandlerRecord("x", "not a handler")
	})
}
