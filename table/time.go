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

package table

import (
	"strconv"
	"time"

	"github.com/stockparfait/errors"
)

// ParseTime parses the timestamp formats used by the hydrologic services,
// normalizing the result to UTC. Strings with an explicit zone offset are
// converted; naive strings are interpreted as already being in UTC.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05.999Z07:00",
		"2006-01-02T15:04:05.999Z",
		"2006-01-02T15:04:05.999",
		"2006-01-02 15:04:05.999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	var err error
	for _, f := range formats {
		var tm time.Time
		tm, err = time.Parse(f, s)
		if err == nil {
			return tm.UTC(), nil
		}
	}
	return time.Time{}, errors.Annotate(err, "failed to parse time: '%s'", s)
}

func asTime(v Value) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// CoerceTime converts the cells of a column to UTC time.Time values. String
// cells are parsed; cells that are already timestamps are left untouched, so
// localization happens exactly once. Unparseable or missing cells become nil.
// Returns the number of cells that could not be converted.
func (t *Table) CoerceTime(column string) int {
	i, ok := t.colIdx[column]
	if !ok {
		return 0
	}
	failed := 0
	for _, row := range t.rows {
		switch v := row[i].(type) {
		case nil:
			failed++
		case time.Time:
			// already localized
		case string:
			tm, err := ParseTime(v)
			if err != nil {
				row[i] = nil
				failed++
				continue
			}
			row[i] = tm
		default:
			row[i] = nil
			failed++
		}
	}
	return failed
}

// CoerceNumeric converts the cells of a column to float64, coercing
// unparseable cells to nil rather than failing. Returns the number of cells
// that could not be converted.
func (t *Table) CoerceNumeric(column string) int {
	i, ok := t.colIdx[column]
	if !ok {
		return 0
	}
	failed := 0
	for _, row := range t.rows {
		switch v := row[i].(type) {
		case nil:
			failed++
		case float64:
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				row[i] = nil
				failed++
				continue
			}
			row[i] = f
		default:
			row[i] = nil
			failed++
		}
	}
	return failed
}

// FormatValue renders a cell for text output and merge keys. Missing values
// render as the empty string, timestamps as RFC 3339 in UTC.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}
