// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONToCSV_SortsColumnsAndProjectsRows(t *testing.T) {
	rows := []map[string]any{
		{"name": "bob", "id": 2},
		{"name": "al", "id": 1},
	}
	out, err := jsonToCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n2,bob\n1,al\n", string(out))
}

func TestNormalizeRows(t *testing.T) {
	assert.Equal(t, []map[string]any{{"a": 1}}, normalizeRows(map[string]any{"a": 1}))
	assert.Nil(t, normalizeRows(42))
	assert.Nil(t, normalizeRows([]any{1, 2, 3}))

	rows := normalizeRows([]any{map[string]any{"a": 1}})
	assert.Len(t, rows, 1)
}

func TestCSVFilename(t *testing.T) {
	u, _ := url.Parse("/reports/sales?year=2026&region=west")
	assert.Equal(t, "sales_year-2026_region-west.csv", csvFilename(u))

	u2, _ := url.Parse("/")
	assert.Equal(t, "download_.csv", csvFilename(u2))
}
