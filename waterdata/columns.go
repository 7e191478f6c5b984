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

package waterdata

import (
	"context"
	"encoding/json"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

// Schema fetches the property names of a collection from its schema
// document, in the order published.
func Schema(ctx context.Context, service string) ([]string, error) {
	resp, err := query.Do(ctx, query.Request{
		URL:    APIURL + "/collections/" + service + "/schema",
		Header: defaultHeaders(),
	})
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch schema of %q", service)
	}
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, errors.Annotate(err, "failed to parse schema of %q", service)
	}
	props := make([]string, 0, len(doc.Properties))
	for k := range doc.Properties {
		props = append(props, k)
	}
	slices.Sort(props)
	return props, nil
}

// dealWithEmpty gives an empty result its column names: the requested
// properties when given, otherwise the collection's schema properties.
func dealWithEmpty(ctx context.Context, t *table.Table, properties []string, s Service) (*table.Table, error) {
	if !t.Empty() || len(t.Columns()) > 0 {
		return t, nil
	}
	if len(properties) > 0 {
		return table.New(properties...), nil
	}
	props, err := Schema(ctx, s.Name)
	if err != nil {
		return nil, err
	}
	return table.New(props...), nil
}

// Known numeric columns across the collections.
var numericColumns = []string{
	"altitude", "altitude_accuracy", "contributing_drainage_area",
	"drainage_area", "hole_constructed_depth", "value",
	"well_constructed_depth"}

// Known temporal columns across the collections.
var timeColumns = []string{
	"begin", "begin_utc", "construction_date", "end", "end_utc", "datetime",
	"last_modified", "time"}

// typeCols casts known temporal and numeric columns, coercing unparseable
// cells to nil.
func typeCols(t *table.Table) {
	for _, c := range timeColumns {
		if t.HasColumn(c) {
			t.CoerceTime(c)
		}
	}
	for _, c := range numericColumns {
		if t.HasColumn(c) {
			t.CoerceNumeric(c)
		}
	}
}

// arrangeCols renames the generic "id" column to the service-specific name
// and orders columns: an explicit property list is honored exactly (keeping
// the geometry unless excluded); otherwise incidental version id columns move
// to the end.
func arrangeCols(t *table.Table, properties []string, idColumn string) *table.Table {
	t.RenameColumn("id", idColumn)

	if len(properties) > 0 {
		props := append([]string{}, properties...)
		if t.HasColumn("geometry") && !slices.Contains(props, "geometry") {
			props = append(props, "geometry")
		}
		return t.Select(props)
	}

	var front, back []string
	for _, c := range t.Columns() {
		if slices.Contains(incidentalIDColumns, c) {
			back = append(back, c)
		} else {
			front = append(front, c)
		}
	}
	if len(back) == 0 {
		return t
	}
	return t.Select(append(front, back...))
}

// sortRows orders rows by time, with the monitoring location as a secondary
// key when present. Tables without a time column keep their order.
func sortRows(t *table.Table) {
	if !t.HasColumn("time") {
		return
	}
	if t.HasColumn("monitoring_location_id") {
		t.SortBy("time", "monitoring_location_id")
		return
	}
	t.SortBy("time")
}
