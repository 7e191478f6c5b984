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

// Package waterdata retrieves data from the page-oriented OGC collections of
// the modern water data API: daily and continuous observations, monitoring
// locations, time series metadata and field measurements, plus the metadata
// reference tables.
package waterdata

import (
	"context"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

// APIURL is the base URL of the OGC API. A variable so tests can point it at
// a local server.
var APIURL = "https://api.waterdata.usgs.gov/ogcapi/v0"

// MaxLimit is the largest per-page result limit the API accepts.
const MaxLimit = 50000

// Service describes one OGC collection: its name, the caller-facing name of
// the generic "id" result column, and whether its time filter accepts dates
// only. All per-service special-casing is driven by this table.
type Service struct {
	Name     string
	IDColumn string
	DateOnly bool
}

// Services lists the queryable collections.
var Services = map[string]Service{
	"daily":                {"daily", "daily_id", true},
	"continuous":           {"continuous", "continuous_id", false},
	"latest-daily":         {"latest-daily", "latest_daily_id", false},
	"latest-continuous":    {"latest-continuous", "latest_continuous_id", false},
	"monitoring-locations": {"monitoring-locations", "monitoring_location_id", false},
	"time-series-metadata": {"time-series-metadata", "time_series_id", false},
	"field-measurements":   {"field-measurements", "field_measurement_id", false},
}

// incidentalIDColumns are version ids that are meaningless to most users and
// get moved to the end of the column order unless explicitly requested.
var incidentalIDColumns = []string{
	"latest_continuous_id", "latest_daily_id", "daily_id", "continuous_id",
	"field_measurement_id"}

// idAliases returns the filter keys recognized as the service's generic "id".
func (s Service) idAliases() []string {
	return []string{"id", s.IDColumn, strings.ReplaceAll(s.Name, "-", "_") + "_id"}
}

// Query is a request builder for one collection. All modifiers copy the
// query, so a base query can be shared and extended freely.
type Query struct {
	service      Service
	filters      map[string][]string
	properties   []string
	bbox         []string
	limit        int
	skipGeometry bool
	convertType  bool
}

// NewQuery creates a query for a collection from the Services table.
func NewQuery(service string) (*Query, error) {
	s, ok := Services[service]
	if !ok {
		return nil, errors.Reason("unknown collection %q", service)
	}
	return &Query{service: s, filters: map[string][]string{}, convertType: true}, nil
}

// Copy returns a deep copy of the query.
func (q *Query) Copy() *Query {
	res := *q
	res.filters = make(map[string][]string, len(q.filters))
	for k, vs := range q.filters {
		res.filters[k] = append([]string{}, vs...)
	}
	res.properties = append([]string{}, q.properties...)
	res.bbox = append([]string{}, q.bbox...)
	return &res
}

// Filter adds a filter on a queryable field. Multi-valued filters switch the
// request to POST with a CQL2 body. The service's id column name is accepted
// as an alias for the generic "id" field.
func (q *Query) Filter(key string, values ...string) *Query {
	q2 := q.Copy()
	if slices.Contains(q.service.idAliases(), key) {
		key = "id"
	}
	q2.filters[key] = append([]string{}, values...)
	return q2
}

// MonitoringLocationID filters by monitoring location ids, e.g.
// "USGS-02238500".
func (q *Query) MonitoringLocationID(ids ...string) *Query {
	if q.service.Name == "monitoring-locations" {
		return q.Filter("id", ids...)
	}
	return q.Filter("monitoring_location_id", ids...)
}

// ParameterCode filters by parameter codes.
func (q *Query) ParameterCode(codes ...string) *Query {
	return q.Filter("parameter_code", codes...)
}

// StatisticID filters by statistic codes, e.g. "00003" for the daily mean.
func (q *Query) StatisticID(ids ...string) *Query {
	return q.Filter("statistic_id", ids...)
}

// Time filters by observation time: a single date or datetime, a relative
// period like "P7D", or a start and end forming a range.
func (q *Query) Time(values ...string) *Query {
	return q.Filter("time", values...)
}

// LastModified filters by record modification time.
func (q *Query) LastModified(values ...string) *Query {
	return q.Filter("last_modified", values...)
}

// Properties restricts and orders the returned columns. The service's id
// column name may be used in place of "id".
func (q *Query) Properties(props ...string) *Query {
	q2 := q.Copy()
	q2.properties = append([]string{}, props...)
	return q2
}

// BBox filters by a (west, south, east, north) bounding box.
func (q *Query) BBox(coords ...string) *Query {
	q2 := q.Copy()
	q2.bbox = append([]string{}, coords...)
	return q2
}

// Limit caps the number of results per page; values outside (0, MaxLimit]
// use MaxLimit.
func (q *Query) Limit(n int) *Query {
	q2 := q.Copy()
	q2.limit = n
	return q2
}

// SkipGeometry excludes the geometry from the response.
func (q *Query) SkipGeometry(skip bool) *Query {
	q2 := q.Copy()
	q2.skipGeometry = skip
	return q2
}

// ConvertTypes enables or disables casting known temporal and numeric
// columns. Enabled by default.
func (q *Query) ConvertTypes(convert bool) *Query {
	q2 := q.Copy()
	q2.convertType = convert
	return q2
}

// requestProperties is the property list as sent to the API, with the
// service-specific id name mapped back to the generic "id".
func (q *Query) requestProperties() []string {
	props := append([]string{}, q.properties...)
	for i, p := range props {
		if slices.Contains(q.service.idAliases(), p) {
			props[i] = "id"
		}
	}
	return props
}

// resultProperties is the property list as presented to the caller, with the
// generic "id" mapped to the service-specific name.
func (q *Query) resultProperties() []string {
	props := append([]string{}, q.properties...)
	for i, p := range props {
		if slices.Contains(q.service.idAliases(), p) {
			props[i] = q.service.IDColumn
		}
	}
	return props
}

// Get runs the query, walking all result pages, and normalizes the result
// table.
func Get(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	req, err := q.buildRequest()
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to build %q request", q.service.Name)
	}
	t, first, err := walkPages(ctx, req)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve %q collection", q.service.Name)
	}
	t, err = dealWithEmpty(ctx, t, q.resultProperties(), q.service)
	if err != nil {
		return nil, nil, err
	}
	if q.convertType {
		typeCols(t)
	}
	t = arrangeCols(t, q.resultProperties(), q.service.IDColumn)
	sortRows(t)
	return t, query.NewMetadata(first, false), nil
}

// metadataCollections are the reference tables of GetReferenceTable.
var metadataCollections = []string{
	"agency-codes", "altitude-datums", "aquifer-codes", "aquifer-types",
	"coordinate-accuracy-codes", "coordinate-datum-codes",
	"coordinate-method-codes", "counties", "hydrologic-unit-codes",
	"medium-codes", "national-aquifer-codes", "parameter-codes",
	"reliability-codes", "site-types", "states", "statistic-codes",
	"topographic-codes", "time-zone-codes"}

// GetReferenceTable retrieves a metadata reference table listing the
// allowable values of a parameter argument, e.g. "parameter-codes".
func GetReferenceTable(ctx context.Context, collection string, limit int) (*table.Table, *query.Metadata, error) {
	if !slices.Contains(metadataCollections, collection) {
		return nil, nil, errors.Reason("invalid reference collection %q", collection)
	}
	id := strings.ReplaceAll(collection, "-", "_")
	if collection == "counties" {
		id = "county"
	} else if strings.HasSuffix(collection, "s") {
		id = strings.TrimSuffix(id, "s")
	}
	q := &Query{
		service: Service{Name: collection, IDColumn: id},
		filters: map[string][]string{},
		limit:   limit,
	}
	return Get(ctx, q)
}
