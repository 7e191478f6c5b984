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

// Package wqp retrieves data from the multi-agency Water Quality Portal. The
// portal delimits multi-valued parameters with semicolons rather than commas.
package wqp

import (
	"bytes"
	"context"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
)

// WQPURL is the base URL of the portal. A variable so tests can point it at a
// local server.
var WQPURL = "https://www.waterqualitydata.us/"

// Query is a request builder for the portal's search services. All modifiers
// copy the query.
type Query struct {
	params query.Params
}

// NewQuery creates an empty portal query.
func NewQuery() *Query { return &Query{params: query.Params{}} }

// Copy returns a deep copy of the query.
func (q *Query) Copy() *Query { return &Query{params: q.params.Copy()} }

// Filter sets a raw portal parameter, e.g. "organization".
func (q *Query) Filter(key string, values ...string) *Query {
	q2 := q.Copy()
	q2.params.Set(key, values...)
	return q2
}

// SiteID filters by site identifiers of the form "USGS-01491000".
func (q *Query) SiteID(ids ...string) *Query {
	return q.Filter("siteid", ids...)
}

// StateCode filters by a FIPS state code, e.g. "US:17" for Illinois.
func (q *Query) StateCode(code string) *Query {
	return q.Filter("statecode", code)
}

// CountyCode filters by a FIPS county code.
func (q *Query) CountyCode(code string) *Query {
	return q.Filter("countycode", code)
}

// HUC filters by eight-digit hydrologic units.
func (q *Query) HUC(hucs ...string) *Query {
	return q.Filter("huc", hucs...)
}

// BBox filters by a (west, south, east, north) bounding box. The portal
// expects the coordinates joined by commas regardless of the list delimiter.
func (q *Query) BBox(west, south, east, north string) *Query {
	return q.Filter("bBox", west+","+south+","+east+","+north)
}

// PCode filters by five-digit USGS parameter codes. NWIS-sourced records
// only.
func (q *Query) PCode(codes ...string) *Query {
	return q.Filter("pCode", codes...)
}

// CharacteristicName filters by case-sensitive characteristic names.
func (q *Query) CharacteristicName(names ...string) *Query {
	return q.Filter("characteristicName", names...)
}

// StartDate bounds the data-collection activity dates, in MM-DD-YYYY format.
// Either bound may be empty.
func (q *Query) StartDate(lo, hi string) *Query {
	q2 := q.Copy()
	if lo != "" {
		q2.params.Set("startDateLo", lo)
	}
	if hi != "" {
		q2.params.Set("startDateHi", hi)
	}
	return q2
}

// search runs one portal search service and parses the CSV result.
func search(ctx context.Context, service string, q *Query) (*table.Table, *query.Response, error) {
	p := q.params.Copy()
	p.Set("mimeType", "csv")
	p.Set("zip", "no")
	resp, err := query.Do(ctx, query.Request{
		URL:       WQPURL + service + "/Search",
		Params:    p,
		Delimiter: ";",
	})
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to search %q", service)
	}
	t, err := table.FromCSV(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse %q result", service)
	}
	return t, resp, nil
}

// GetResults retrieves water-quality result records matching the query. The
// metadata carries a lazy site lookup when the query names sites.
func GetResults(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	t, resp, err := search(ctx, "Result", q)
	if err != nil {
		return nil, nil, err
	}
	md := query.NewMetadata(resp, false)
	md.SiteInfo = siteLookup(q)
	return t, md, nil
}

// WhatSites searches the portal for sites with data matching the query.
func WhatSites(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	t, resp, err := search(ctx, "Station", q)
	if err != nil {
		return nil, nil, err
	}
	return t, query.NewMetadata(resp, false), nil
}

// siteLookup defers a WhatSites call restricted to the sites of the original
// query. Available only when the query filters by site.
func siteLookup(q *Query) *query.Deferred {
	if !q.params.Has("siteid") {
		return nil
	}
	sites := q.Copy()
	return query.NewDeferred(func(ctx context.Context) (*table.Table, *query.Metadata, error) {
		return WhatSites(ctx, NewQuery().SiteID(sites.params["siteid"]...))
	})
}
