// Copyright 2026 Waterfetch Authors

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rdb parses the annotated tab-delimited table format (RDB) used by
// the legacy water services: a block of "#" comment lines, one tab-delimited
// header line, one discarded type declaration line, then data rows.
package rdb

import (
	"strings"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/table"
)

// Column names whose values look numeric but are identifiers with meaningful
// leading zeros. They stay strings no matter what.
var stringColumns = map[string]bool{
	"site_no":      true,
	"parm_cd":      true,
	"parameter_cd": true,
}

// Column names holding decimal geographic coordinates, forced to float.
var floatColumns = []string{"dec_long_va", "dec_lat_va"}

// Parse parses an RDB document. The literal token "NaN" and empty fields are
// missing values. Identifier columns are kept as strings, decimal coordinate
// columns are coerced to float64. A document with zero comment lines is
// valid: the header is then the first line. A document with no rows after the
// header yields an empty table.
func Parse(text string) (*table.Table, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	count := 0
	for count < len(lines) && strings.HasPrefix(lines[count], "#") {
		count++
	}
	if count >= len(lines) {
		return nil, errors.Reason("RDB document has no header line")
	}

	fields := strings.Split(lines[count], "\t")
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(strings.TrimSpace(f), ",", "")
	}
	t := table.New(fields...)

	// A document may end right after the header, before the type declaration
	// row. It has no data rows.
	if count+2 > len(lines) {
		return t, nil
	}
	// Skip the header and the type declaration row.
	for _, line := range lines[count+2:] {
		if line == "" {
			continue
		}
		raw := strings.Split(line, "\t")
		if len(raw) > len(fields) {
			return nil, errors.Reason(
				"RDB row has %d fields, more than the %d header columns: %q",
				len(raw), len(fields), line)
		}
		cells := make([]table.Value, len(fields))
		for i, s := range raw {
			if s == "" || s == "NaN" {
				continue
			}
			cells[i] = s
		}
		if err := t.AddRow(cells...); err != nil {
			return nil, errors.Annotate(err, "failed to add RDB row")
		}
	}

	for _, c := range floatColumns {
		if t.HasColumn(c) && !stringColumns[c] {
			t.CoerceNumeric(c)
		}
	}
	return t, nil
}
