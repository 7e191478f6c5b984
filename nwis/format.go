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

package nwis

import (
	"context"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/waterfetch/waterfetch/codes"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/rdb"
	"github.com/waterfetch/waterfetch/table"
)

// FormatResponse builds the index of a service response. With no datetime
// column the table is returned unchanged. The peaks service first derives
// datetime from the peak date and drops rows without one. A compound
// (site_no, datetime) index is built only when more than one site is present
// and multiIndex is set. Naive timestamps are localized to UTC exactly once,
// and rows come back sorted by the index.
func FormatResponse(ctx context.Context, t *table.Table, service string, multiIndex bool) *table.Table {
	if service == "peaks" {
		t = preformatPeaks(t)
	}
	if !t.HasColumn("datetime") {
		return t
	}
	t.CoerceTime("datetime")
	if multiIndex && t.NumDistinct("site_no") > 1 {
		t.SetCompoundIndex("site_no", "datetime")
	} else {
		t.SetTimeIndex("datetime")
	}
	t.SortByIndex()
	return t
}

// preformatPeaks derives datetime from peak_dt, coercing unparseable dates to
// nil and then dropping those rows. Differs from the general path, which
// keeps nulls.
func preformatPeaks(t *table.Table) *table.Table {
	if !t.HasColumn("peak_dt") {
		return t
	}
	vals := t.Column("peak_dt")
	cells := make([]table.Value, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if tm, err := table.ParseTime(s); err == nil {
			cells[i] = tm
		}
	}
	t.AddColumn("datetime", cells)
	t.DropColumns("peak_dt")
	return t.Filter(func(i int) bool { return t.Cell(i, "datetime") != nil })
}

// FormatDatetime derives a single UTC "datetime" column from separate date,
// time of day and time zone code columns, dropping the source columns. Rows
// that cannot be fully parsed keep a nil datetime; a warning reports their
// count.
func FormatDatetime(ctx context.Context, t *table.Table, dateField, timeField, tzField string) {
	if !t.HasColumn(dateField) || !t.HasColumn(timeField) || !t.HasColumn(tzField) {
		return
	}
	incomplete := 0
	cells := make([]table.Value, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		date, dok := t.Cell(i, dateField).(string)
		tod, tok := t.Cell(i, timeField).(string)
		zone, zok := t.Cell(i, tzField).(string)
		if !dok || !tok || !zok {
			incomplete++
			continue
		}
		loc, ok := codes.Location(zone)
		if !ok {
			incomplete++
			continue
		}
		tm, err := time.ParseInLocation("2006-01-02 15:04", date+" "+tod, loc)
		if err != nil {
			incomplete++
			continue
		}
		cells[i] = tm.UTC()
	}
	t.AddColumn("datetime", cells)
	t.DropColumns(dateField, timeField, tzField)
	if incomplete > 0 {
		logging.Warningf(ctx,
			"%d rows have incomplete timestamps and were kept with a null datetime; "+
				"consider disabling the datetime index", incomplete)
	}
}

// rdbParse parses an RDB response body, annotating errors with the request
// URL.
func rdbParse(resp *query.Response) (*table.Table, error) {
	t, err := rdb.Parse(string(resp.Body))
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse RDB response from %s", resp.URL)
	}
	return t, nil
}

// getRDB runs a waterservices RDB request and formats its response.
func getRDB(ctx context.Context, service string, p query.Params, q *Query) (*table.Table, *query.Metadata, error) {
	resp, err := queryWaterservices(ctx, service, p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to query %q service", service)
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	return FormatResponse(ctx, t, service, q.multiIndex), newMetadata(resp, p, true), nil
}
