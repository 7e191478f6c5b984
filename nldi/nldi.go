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

// Package nldi navigates the hydrologic network linkage index: flowlines,
// aggregated basins and linked features, upstream or downstream of an origin.
//
// Feature and data source names are validated against a SourceCache owned by
// the caller. The cache fills itself on first use and refreshes only when
// asked, so the set of known sources is always under the caller's control.
package nldi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

// NLDIURL is the base URL of the linked-data API. A variable so tests can
// point it at a local server.
var NLDIURL = "https://labs.waterdata.usgs.gov/api/nldi/linked-data"

// NavigationModes are the allowed network navigation modes: upstream main,
// downstream main, upstream with tributaries, downstream with diversions.
var NavigationModes = []string{"UM", "DM", "UT", "DD"}

func validateMode(mode string) (string, error) {
	m := strings.ToUpper(mode)
	if !slices.Contains(NavigationModes, m) {
		return "", errors.Reason("invalid navigation mode %q; allowed modes: %s",
			mode, strings.Join(NavigationModes, ", "))
	}
	return m, nil
}

// SourceCache holds the feature and data source names known to the API. The
// zero value is an unfilled cache.
type SourceCache struct {
	sources []string
}

// Refresh replaces the cached source list with the API's current one.
func (c *SourceCache) Refresh(ctx context.Context) error {
	resp, err := query.Do(ctx, query.Request{URL: NLDIURL + "/"})
	if err != nil {
		return errors.Annotate(err, "failed to list data sources")
	}
	var sources []struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(resp.Body, &sources); err != nil {
		return errors.Annotate(err, "failed to parse data source list")
	}
	c.sources = make([]string, len(sources))
	for i, s := range sources {
		c.sources[i] = s.Source
	}
	return nil
}

// Sources returns the cached source names.
func (c *SourceCache) Sources() []string { return c.sources }

// Validate checks a source name against the cache, filling it first when
// empty.
func (c *SourceCache) Validate(ctx context.Context, source string) error {
	if c.sources == nil {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
	}
	if !slices.Contains(c.sources, source) {
		return errors.Reason("invalid data source %q; available sources: %s",
			source, strings.Join(c.sources, ", "))
	}
	return nil
}

// Origin is the starting point of a navigation: either a feature registered
// with a source, or a network comid. Exactly one of the two must be set.
type Origin struct {
	FeatureSource string
	FeatureID     string
	Comid         int
}

func (o Origin) validate() error {
	if o.FeatureSource != "" && o.FeatureID == "" {
		return errors.Reason("feature id is required with a feature source")
	}
	if o.FeatureID != "" && o.FeatureSource == "" {
		return errors.Reason("feature source is required with a feature id")
	}
	if o.Comid != 0 && o.FeatureSource != "" {
		return errors.Reason(
			"only one origin type: comid and feature source cannot both be set")
	}
	if o.Comid == 0 && o.FeatureSource == "" {
		return errors.Reason("an origin is required: comid or feature source")
	}
	return nil
}

// navigationURL is the common prefix of navigation endpoints for an origin.
func (o Origin) navigationURL(mode string) string {
	if o.FeatureSource != "" {
		return NLDIURL + "/" + o.FeatureSource + "/" + o.FeatureID +
			"/navigation/" + mode
	}
	return NLDIURL + "/comid/" + strconv.Itoa(o.Comid) + "/navigation/" + mode
}

// geoFeature is one member of a GeoJSON feature collection.
type geoFeature struct {
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// featureTable converts a GeoJSON feature collection to a table: property
// columns in sorted order plus a trailing "geometry" column.
func featureTable(body []byte) (*table.Table, error) {
	var doc struct {
		Features []geoFeature `json:"features"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Annotate(err, "failed to parse feature collection")
	}
	var props []string
	for _, f := range doc.Features {
		for k := range f.Properties {
			if !slices.Contains(props, k) {
				props = append(props, k)
			}
		}
	}
	slices.Sort(props)
	t := table.New(append(props, "geometry")...)
	for _, f := range doc.Features {
		cells := make([]table.Value, 0, len(props)+1)
		for _, k := range props {
			switch v := f.Properties[k].(type) {
			case nil:
				cells = append(cells, nil)
			case string:
				cells = append(cells, v)
			case float64:
				cells = append(cells, v)
			default:
				raw, err := json.Marshal(v)
				if err != nil {
					cells = append(cells, nil)
					continue
				}
				cells = append(cells, string(raw))
			}
		}
		var g table.Value
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			g = string(f.Geometry)
		}
		t.AddRow(append(cells, g)...)
	}
	return t, nil
}

func getCollection(ctx context.Context, url string, p query.Params) (*table.Table, error) {
	resp, err := query.Do(ctx, query.Request{URL: url, Params: p})
	if err != nil {
		return nil, err
	}
	return featureTable(resp.Body)
}

// Flowlines describes a flowline navigation: an origin, a navigation mode,
// and optional bounds. A zero Distance means 5 km.
type Flowlines struct {
	Origin    Origin
	Mode      string
	Distance  int
	StopComid int
	TrimStart bool
}

// GetFlowlines retrieves the polyline flowlines along a navigation, one row
// per flowline with its geometry.
func GetFlowlines(ctx context.Context, cache *SourceCache, r Flowlines) (*table.Table, error) {
	mode, err := validateMode(r.Mode)
	if err != nil {
		return nil, err
	}
	if err := r.Origin.validate(); err != nil {
		return nil, err
	}
	distance := r.Distance
	if distance == 0 {
		distance = 5
	}
	p := query.Params{}
	p.Set("distance", strconv.Itoa(distance))
	if r.Origin.FeatureSource != "" {
		if err := cache.Validate(ctx, r.Origin.FeatureSource); err != nil {
			return nil, err
		}
		p.Set("trimStart", strconv.FormatBool(r.TrimStart))
	}
	if r.StopComid != 0 {
		p.Set("stopComid", strconv.Itoa(r.StopComid))
	}
	t, err := getCollection(ctx, r.Origin.navigationURL(mode)+"/flowlines", p)
	if err != nil {
		return nil, errors.Annotate(err, "failed to get flowlines")
	}
	return t, nil
}

// GetBasin retrieves the aggregated upstream basin polygon of a registered
// feature. The basin is simplified unless full resolution is requested.
func GetBasin(ctx context.Context, cache *SourceCache, featureSource, featureID string, fullResolution, splitCatchment bool) (*table.Table, error) {
	if featureID == "" {
		return nil, errors.Reason("feature id is required")
	}
	if err := cache.Validate(ctx, featureSource); err != nil {
		return nil, err
	}
	p := query.Params{}
	p.Set("simplified", strconv.FormatBool(!fullResolution))
	p.Set("splitCatchment", strconv.FormatBool(splitCatchment))
	t, err := getCollection(ctx,
		NLDIURL+"/"+featureSource+"/"+featureID+"/basin", p)
	if err != nil {
		return nil, errors.Annotate(err, "failed to get basin of %s/%s",
			featureSource, featureID)
	}
	return t, nil
}

// Features describes a feature lookup: by hydrologic position (Lat/Long), by
// a registered feature alone, or along a navigation when Mode and DataSource
// are set. A zero Distance means 50 km.
type Features struct {
	Origin     Origin
	Lat        float64
	Long       float64
	Mode       string
	DataSource string
	Distance   int
	StopComid  int
}

func (r Features) byPosition() bool { return r.Lat != 0 || r.Long != 0 }

// GetFeatures retrieves point features: the catchment at a hydrologic
// position, the registered feature itself, or all linked features of a data
// source along a navigation.
func GetFeatures(ctx context.Context, cache *SourceCache, r Features) (*table.Table, error) {
	if r.byPosition() {
		if r.Lat == 0 || r.Long == 0 {
			return nil, errors.Reason("both lat and long are required")
		}
		if r.Origin.Comid != 0 || r.Origin.FeatureSource != "" {
			return nil, errors.Reason(
				"only one origin type: a position cannot be combined with a comid or feature")
		}
		p := query.Params{}
		p.Set("coords", "POINT("+
			strconv.FormatFloat(r.Long, 'f', -1, 64)+" "+
			strconv.FormatFloat(r.Lat, 'f', -1, 64)+")")
		t, err := getCollection(ctx, NLDIURL+"/comid/position", p)
		if err != nil {
			return nil, errors.Annotate(err, "failed to get features by position")
		}
		return t, nil
	}

	if (r.Origin.Comid != 0 || r.DataSource != "") && r.Mode == "" {
		return nil, errors.Reason(
			"a navigation mode is required with a comid or data source")
	}
	if err := r.Origin.validate(); err != nil {
		return nil, err
	}
	if r.Origin.FeatureSource != "" {
		if err := cache.Validate(ctx, r.Origin.FeatureSource); err != nil {
			return nil, err
		}
	}

	if r.Mode == "" {
		// The registered feature itself.
		t, err := getCollection(ctx,
			NLDIURL+"/"+r.Origin.FeatureSource+"/"+r.Origin.FeatureID, query.Params{})
		if err != nil {
			return nil, errors.Annotate(err, "failed to get feature %s/%s",
				r.Origin.FeatureSource, r.Origin.FeatureID)
		}
		return t, nil
	}

	mode, err := validateMode(r.Mode)
	if err != nil {
		return nil, err
	}
	if err := cache.Validate(ctx, r.DataSource); err != nil {
		return nil, err
	}
	distance := r.Distance
	if distance == 0 {
		distance = 50
	}
	p := query.Params{}
	p.Set("distance", strconv.Itoa(distance))
	if r.StopComid != 0 {
		p.Set("stopComid", strconv.Itoa(r.StopComid))
	}
	t, err := getCollection(ctx,
		r.Origin.navigationURL(mode)+"/"+r.DataSource, p)
	if err != nil {
		return nil, errors.Annotate(err, "failed to get %q features", r.DataSource)
	}
	return t, nil
}

// Search finds "basin", "flowlines" or "features" for an origin or position,
// dispatching to the specific getters with their validation.
func Search(ctx context.Context, cache *SourceCache, find string, r Features) (*table.Table, error) {
	find = strings.ToLower(find)
	switch find {
	case "basin", "flowlines", "features":
	default:
		return nil, errors.Reason(
			"invalid find %q; allowed values: basin, flowlines, features", find)
	}
	if r.byPosition() && find != "features" {
		return nil, errors.Reason("a position search can only find features, not %s", find)
	}
	if r.Origin.Comid != 0 && find == "basin" {
		return nil, errors.Reason("a basin requires a registered feature, not a comid")
	}
	switch find {
	case "basin":
		return GetBasin(ctx, cache, r.Origin.FeatureSource, r.Origin.FeatureID,
			false, false)
	case "flowlines":
		return GetFlowlines(ctx, cache, Flowlines{
			Origin: r.Origin, Mode: r.Mode, Distance: r.Distance,
			StopComid: r.StopComid})
	}
	return GetFeatures(ctx, cache, r)
}
