// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError_Error(t *testing.T) {
	testCases := []struct {
		name   string
		err    *HTTPError
		expect string
	}{
		{
			name:   "ok, without internal",
			err:    &HTTPError{Code: http.StatusBadRequest, Message: "bad"},
			expect: "code=400, message=bad",
		},
		{
			name:   "ok, with internal",
			err:    &HTTPError{Code: http.StatusBadRequest, Message: "bad", Internal: errors.New("cause")},
			expect: "code=400, message=bad, internal=cause",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.err.Error())
		})
	}
}

func TestHTTPError_WrapUnwrap(t *testing.T) {
	err := NewHTTPError(http.StatusBadRequest, "bad")
	cause := errors.New("disk full")

	wrapped := err.Wrap(cause)

	assert.Same(t, err, wrapped)
	assert.Equal(t, cause, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, cause))
}

func TestNewHTTPError_DefaultsMessageFromStatus(t *testing.T) {
	err := NewHTTPError(http.StatusNotFound, "")
	assert.Equal(t, "Not Found", err.Message)
}

func TestNewHTTPErrorWithInternal(t *testing.T) {
	cause := errors.New("boom")
	err := NewHTTPErrorWithInternal(http.StatusInternalServerError, cause, "failed")
	assert.Equal(t, http.StatusInternalServerError, err.Code)
	assert.Equal(t, "failed", err.Message)
	assert.Equal(t, cause, err.Internal)
}

func TestStatusByName(t *testing.T) {
	code, ok := statusByName("Not Found")
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)

	_, ok = statusByName("not a real status")
	assert.False(t, ok)
}
