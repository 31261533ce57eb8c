// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// jsonToCSV projects a decoded JSON value into CSV bytes (spec §4.2 "CSV projection"
// content-negotiation branch). It accepts a slice of row objects or a single object treated
// as one row. Column order is the sorted union of row keys, since Go map iteration order
// isn't stable and the original request carries no column ordering of its own.
func jsonToCSV(v any) ([]byte, error) {
	rows := normalizeRows(v)
	columns := collectColumns(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = stringify(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeRows returns nil when v isn't shaped like a row set, so callers can fall back to
// plain JSON instead of emitting an empty CSV.
func normalizeRows(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case map[string]any:
		return []map[string]any{t}
	case []any:
		rows := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil
			}
			rows = append(rows, m)
		}
		return rows
	default:
		return nil
	}
}

func collectColumns(rows []map[string]any) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// csvFilename derives a Content-Disposition filename from the request's last path segment
// and query string (spec §4.2 "attachment filename"), e.g. "/data" -> "data_.csv".
func csvFilename(u *url.URL) string {
	seg := lastPathSegment(u.Path)
	if seg == "" {
		seg = "download"
	}
	q := strings.NewReplacer("&", "_", "=", "-").Replace(u.RawQuery)
	return seg + "_" + q + ".csv"
}

func lastPathSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
