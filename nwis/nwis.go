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

// Package nwis retrieves time series and site data from the legacy National
// Water Information System services. RDB endpoints go through the rdb parser,
// the JSON time-series endpoints through the flattener in this package, and
// every result through the index builder.
package nwis

import (
	"context"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

// Base URLs of the services. Variables so tests can point them at a local
// server.
var (
	WaterdataBaseURL = "https://nwis.waterdata.usgs.gov/"
	WaterdataURL     = WaterdataBaseURL + "nwis/"
	WaterservicesURL = "https://waterservices.usgs.gov/nwis/"
	ParamcodesURL    = "https://help.waterdata.usgs.gov/code/parameter_cd_nm_query"
	AllParamcodesURL = "https://help.waterdata.usgs.gov/code/parameter_cd_query"
)

var waterservicesServices = []string{"dv", "iv", "site", "stat", "gwlevels"}

var waterdataServices = []string{
	"measurements", "peaks", "pmcodes", "water_use", "ratings"}

// Query accumulates the common site and period filters of a retrieval call.
// All modifiers copy the query, so queries can be shared and extended freely.
type Query struct {
	sites      []string
	start      string // YYYY-MM-DD
	end        string
	multiIndex bool
	dtIndex    bool
	params     query.Params
}

// NewQuery creates an empty query with multi-site indexing and datetime
// indexing enabled.
func NewQuery() *Query {
	return &Query{multiIndex: true, dtIndex: true, params: query.Params{}}
}

// Copy returns a deep copy of the query.
func (q *Query) Copy() *Query {
	res := *q
	res.sites = append([]string{}, q.sites...)
	res.params = q.params.Copy()
	return &res
}

// Sites sets the site numbers.
func (q *Query) Sites(sites ...string) *Query {
	q2 := q.Copy()
	q2.sites = append([]string{}, sites...)
	return q2
}

// Start sets the start date, YYYY-MM-DD.
func (q *Query) Start(date string) *Query {
	q2 := q.Copy()
	q2.start = date
	return q2
}

// End sets the end date, YYYY-MM-DD.
func (q *Query) End(date string) *Query {
	q2 := q.Copy()
	q2.end = date
	return q2
}

// MultiIndex enables or disables the compound (site_no, datetime) index for
// multi-site results.
func (q *Query) MultiIndex(enabled bool) *Query {
	q2 := q.Copy()
	q2.multiIndex = enabled
	return q2
}

// DatetimeIndex enables or disables deriving a datetime column for services
// that report separate date, time and time zone fields.
func (q *Query) DatetimeIndex(enabled bool) *Query {
	q2 := q.Copy()
	q2.dtIndex = enabled
	return q2
}

// StateCd filters by a state code.
func (q *Query) StateCd(code string) *Query { return q.Param("stateCd", code) }

// HUC filters by hydrologic unit codes.
func (q *Query) HUC(codes ...string) *Query { return q.Param("huc", codes...) }

// CountyCd filters by county codes.
func (q *Query) CountyCd(codes ...string) *Query {
	return q.Param("countyCd", codes...)
}

// BBox filters by a (west, south, east, north) bounding box.
func (q *Query) BBox(coords ...string) *Query {
	return q.Param("bBox", coords...)
}

// ParameterCd filters by parameter codes.
func (q *Query) ParameterCd(codes ...string) *Query {
	return q.Param("parameterCd", codes...)
}

// Param sets an arbitrary service parameter, overriding any builder field of
// the same name.
func (q *Query) Param(key string, values ...string) *Query {
	q2 := q.Copy()
	q2.params.Set(key, values...)
	return q2
}

func (q *Query) waterservicesParams(format string) query.Params {
	p := q.params.Copy()
	if len(q.sites) > 0 && !p.Has("sites") {
		p.Set("sites", q.sites...)
	}
	if q.start != "" && !p.Has("startDT") {
		p.Set("startDT", q.start)
	}
	if q.end != "" && !p.Has("endDT") {
		p.Set("endDT", q.end)
	}
	if !p.Has("format") {
		p.Set("format", format)
	}
	return p
}

func (q *Query) waterdataParams() query.Params {
	p := q.params.Copy()
	if len(q.sites) > 0 && !p.Has("site_no") {
		p.Set("site_no", q.sites...)
	}
	if q.start != "" && !p.Has("begin_date") {
		p.Set("begin_date", q.start)
	}
	if q.end != "" && !p.Has("end_date") {
		p.Set("end_date", q.end)
	}
	if !p.Has("format") {
		p.Set("format", "rdb")
	}
	return p
}

// queryWaterservices validates the service and the major filter before any
// network call, then executes the request.
func queryWaterservices(ctx context.Context, service string, p query.Params) (*query.Response, error) {
	if !slices.Contains(waterservicesServices, service) {
		return nil, errors.Reason("service %q not recognized", service)
	}
	if !p.Has("sites") && !p.Has("stateCd") && !p.Has("bBox") &&
		!p.Has("huc") && !p.Has("countyCd") {
		return nil, errors.Reason(
			"query must specify a major filter: sites, stateCd, bBox, huc, or countyCd")
	}
	return query.Do(ctx, query.Request{URL: WaterservicesURL + service, Params: p})
}

var bboxParams = []string{
	"nw_longitude_va", "nw_latitude_va", "se_longitude_va", "se_latitude_va"}

// queryWaterdata is the legacy waterdata counterpart of queryWaterservices,
// with its own major filter and bounding box parameter names.
func queryWaterdata(ctx context.Context, service string, p query.Params) (*query.Response, error) {
	if !slices.Contains(waterdataServices, service) {
		return nil, errors.Reason("service %q not recognized", service)
	}
	nBBox := 0
	for _, k := range bboxParams {
		if p.Has(k) {
			nBBox++
		}
	}
	if !p.Has("site_no") && !p.Has("state_cd") && nBBox == 0 {
		return nil, errors.Reason(
			"query must specify a major filter: site_no, state_cd, or a bounding box")
	}
	if nBBox > 0 && nBBox < len(bboxParams) {
		return nil, errors.Reason("one or more bounding box coordinates missing")
	}
	return query.Do(ctx, query.Request{URL: WaterdataURL + service, Params: p})
}

// GetDV retrieves daily values as flattened time series.
func GetDV(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterservicesParams("json")
	resp, err := queryWaterservices(ctx, "dv", p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve daily values")
	}
	t, err := ReadJSON(resp.Body)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse daily values")
	}
	return FormatResponse(ctx, t, "dv", q.multiIndex), newMetadata(resp, p, false), nil
}

// GetIV retrieves instantaneous values as flattened time series.
func GetIV(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterservicesParams("json")
	resp, err := queryWaterservices(ctx, "iv", p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve instantaneous values")
	}
	t, err := ReadJSON(resp.Body)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse instantaneous values")
	}
	return FormatResponse(ctx, t, "iv", q.multiIndex), newMetadata(resp, p, false), nil
}

// GetInfo retrieves expanded site descriptions.
func GetInfo(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterservicesParams("rdb")
	if p.First("seriesCatalogOutput") == "true" || p.First("seriesCatalogOutput") == "True" {
		p.Set("seriesCatalogOutput", "True")
	} else {
		// seriesCatalogOutput and the expanded site output are exclusive.
		p.Set("siteOutput", "Expanded")
	}
	return getRDB(ctx, "site", p, q)
}

// WhatSites searches for sites within a region with specific data. It accepts
// the same filters as GetInfo.
func WhatSites(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	return getRDB(ctx, "site", q.waterservicesParams("rdb"), q)
}

// GetStats retrieves site statistics. Report type and the like are set via
// Param, e.g. Param("statReportType", "annual").
func GetStats(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	return getRDB(ctx, "stat", q.waterservicesParams("rdb"), q)
}

// GetGWLevels retrieves groundwater levels, deriving a single datetime column
// from the level date, time and time zone fields unless datetime indexing is
// disabled.
func GetGWLevels(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterservicesParams("rdb")
	resp, err := queryWaterservices(ctx, "gwlevels", p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve groundwater levels")
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	if q.dtIndex {
		FormatDatetime(ctx, t, "lev_dt", "lev_tm", "lev_tz_cd")
	}
	return FormatResponse(ctx, t, "gwlevels", q.multiIndex), newMetadata(resp, p, true), nil
}

// GetDischargeMeasurements retrieves field discharge measurements.
func GetDischargeMeasurements(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterdataParams()
	resp, err := queryWaterdata(ctx, "measurements", p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve discharge measurements")
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	return FormatResponse(ctx, t, "measurements", q.multiIndex), newMetadata(resp, p, true), nil
}

// GetDischargePeaks retrieves annual peak discharges. Peak records without a
// parseable date are dropped, not kept as nulls.
func GetDischargePeaks(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	p := q.waterdataParams()
	resp, err := queryWaterdata(ctx, "peaks", p)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve discharge peaks")
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	return FormatResponse(ctx, t, "peaks", q.multiIndex), newMetadata(resp, p, true), nil
}

// RatingFileTypes are the accepted rating table kinds.
var RatingFileTypes = []string{"base", "corr", "exsa"}

// GetRatings retrieves the current rating table of an active streamgage.
func GetRatings(ctx context.Context, site, fileType string) (*table.Table, *query.Metadata, error) {
	if !slices.Contains(RatingFileTypes, fileType) {
		return nil, nil, errors.Reason(
			"unrecognized file type %q, must be one of %v", fileType, RatingFileTypes)
	}
	p := query.Params{}
	if site != "" {
		p.Set("site_no", site)
	}
	p.Set("file_type", fileType)
	resp, err := query.Do(ctx, query.Request{
		URL:    WaterdataBaseURL + "nwisweb/get_ratings/",
		Params: p,
	})
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve ratings for site %q", site)
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	return t, newMetadata(resp, p, true), nil
}

// GetWaterUse retrieves water use data. Every list argument accepts "ALL".
func GetWaterUse(ctx context.Context, years []string, state string, counties, categories []string) (*table.Table, *query.Metadata, error) {
	orAll := func(vs []string) []string {
		if len(vs) == 0 {
			return []string{"ALL"}
		}
		return vs
	}
	p := query.Params{
		"rdb_compression": []string{"value"},
		"format":          []string{"rdb"},
		"wu_year":         orAll(years),
		"wu_category":     orAll(categories),
		"wu_county":       orAll(counties),
	}
	url := WaterdataURL + "water_use"
	if state != "" {
		url = WaterdataBaseURL + state + "/nwis/water_use"
		p.Set("wu_area", "county")
	}
	resp, err := query.Do(ctx, query.Request{URL: url, Params: p})
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve water use data")
	}
	t, err := rdbParse(resp)
	if err != nil {
		return nil, nil, err
	}
	return t, newMetadata(resp, p, true), nil
}

// GetPmcodes retrieves descriptions of parameter codes (or names). An empty
// or ["all"] list retrieves every code. With partial, codes are matched as
// substrings.
func GetPmcodes(ctx context.Context, parameterCd []string, partial bool) (*table.Table, *query.Metadata, error) {
	if len(parameterCd) == 0 ||
		(len(parameterCd) == 1 && slices.Contains([]string{"all", "All", "ALL"}, parameterCd[0])) {
		p := query.Params{"fmt": []string{"rdb"}, "group_cd": []string{"%"}}
		resp, err := query.Do(ctx, query.Request{URL: AllParamcodesURL, Params: p})
		if err != nil {
			return nil, nil, errors.Annotate(err, "failed to retrieve parameter codes")
		}
		t, err := rdbParse(resp)
		if err != nil {
			return nil, nil, err
		}
		return t, newMetadata(resp, p, true), nil
	}

	var res *table.Table
	var resp *query.Response
	for _, param := range parameterCd {
		if partial {
			param = "%" + param + "%"
		}
		p := query.Params{"fmt": []string{"rdb"}, "parm_nm_cd": []string{param}}
		var err error
		resp, err = query.Do(ctx, query.Request{URL: ParamcodesURL, Params: p})
		if err != nil {
			return nil, nil, errors.Annotate(err, "failed to retrieve parameter code %q", param)
		}
		t, err := rdbParse(resp)
		if err != nil {
			return nil, nil, err
		}
		if t.Empty() {
			return nil, nil, errors.Reason(
				"parameter code or name %q returned no information", param)
		}
		if res == nil {
			res = t
		} else {
			res.Concat(t)
		}
	}
	return res, newMetadata(resp, query.Params{}, true), nil
}

// GetRecord dispatches to the service-specific retrieval and returns the
// table only. Recognized services: iv, dv, site, stat, gwlevels,
// measurements, peaks, pmcodes, water_use, ratings.
func GetRecord(ctx context.Context, q *Query, service string) (*table.Table, error) {
	var t *table.Table
	var err error
	switch service {
	case "iv":
		t, _, err = GetIV(ctx, q)
	case "dv":
		t, _, err = GetDV(ctx, q)
	case "site":
		t, _, err = GetInfo(ctx, q)
	case "stat":
		t, _, err = GetStats(ctx, q)
	case "gwlevels":
		t, _, err = GetGWLevels(ctx, q)
	case "measurements":
		t, _, err = GetDischargeMeasurements(ctx, q)
	case "peaks":
		t, _, err = GetDischargePeaks(ctx, q)
	case "pmcodes":
		t, _, err = GetPmcodes(ctx, q.params["parameterCd"], true)
	case "water_use":
		t, _, err = GetWaterUse(ctx, q.params["years"], q.params.First("state"),
			q.params["counties"], q.params["categories"])
	case "ratings":
		site := ""
		if len(q.sites) > 0 {
			site = q.sites[0]
		}
		t, _, err = GetRatings(ctx, site, "base")
	default:
		return nil, errors.Reason("unrecognized service: %q", service)
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to retrieve %q record", service)
	}
	return t, nil
}
