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

// Package samples retrieves discrete water-quality samples from the Samples
// database. Each service exposes a fixed set of result profiles; the pairing
// is validated locally, before any network call.
package samples

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

// SamplesURL is the base URL of the Samples API. A variable so tests can
// point it at a local server.
var SamplesURL = "https://api.waterdata.usgs.gov/samples-data"

// profiles lists the valid result profiles of each service.
var profiles = map[string][]string{
	"results": {"fullphyschem", "basicphyschem", "fullbio", "basicbio",
		"narrow", "resultdetectionquantitationlimit", "labsampleprep", "count"},
	"locations":     {"site", "count"},
	"activities":    {"sampact", "actmetric", "actgroup", "count"},
	"projects":      {"project", "projectmonitoringlocationweight"},
	"organizations": {"organization", "count"},
}

// InvalidServiceError indicates a service name outside the Samples API.
type InvalidServiceError struct {
	Service string
}

func (e *InvalidServiceError) Error() string {
	names := make([]string, 0, len(profiles))
	for s := range profiles {
		names = append(names, s)
	}
	slices.Sort(names)
	return fmt.Sprintf("%q is not a Samples service; valid services: %s",
		e.Service, strings.Join(names, ", "))
}

// InvalidProfileError indicates a profile not offered by the given service.
type InvalidProfileError struct {
	Service string
	Profile string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("%q is not a profile of the %q service; valid profiles: %s",
		e.Profile, e.Service, strings.Join(profiles[e.Service], ", "))
}

// Query is a request builder for one service/profile pair. All modifiers copy
// the query.
type Query struct {
	service string
	profile string
	params  query.Params
}

// NewQuery creates a query for a service and one of its profiles. The pairing
// is checked here, so an invalid combination never reaches the network.
func NewQuery(service, profile string) (*Query, error) {
	valid, ok := profiles[service]
	if !ok {
		return nil, &InvalidServiceError{Service: service}
	}
	if !slices.Contains(valid, profile) {
		return nil, &InvalidProfileError{Service: service, Profile: profile}
	}
	return &Query{service: service, profile: profile, params: query.Params{}}, nil
}

// Copy returns a deep copy of the query.
func (q *Query) Copy() *Query {
	return &Query{service: q.service, profile: q.profile, params: q.params.Copy()}
}

// Filter sets a raw filter parameter of the Samples API, e.g.
// "activityMediaName" or "usgsPCode".
func (q *Query) Filter(key string, values ...string) *Query {
	q2 := q.Copy()
	q2.params.Set(key, values...)
	return q2
}

// MonitoringLocationID filters by monitoring location identifiers, e.g.
// "USGS-040851385".
func (q *Query) MonitoringLocationID(ids ...string) *Query {
	return q.Filter("monitoringLocationIdentifier", ids...)
}

// CharacteristicGroup filters by broad result categories, e.g.
// "Organics, PFAS".
func (q *Query) CharacteristicGroup(groups ...string) *Query {
	return q.Filter("characteristicGroup", groups...)
}

// Characteristic filters by specific result categories, e.g.
// "Suspended Sediment Discharge".
func (q *Query) Characteristic(names ...string) *Query {
	return q.Filter("characteristic", names...)
}

// USGSPCode filters by five-digit parameter codes.
func (q *Query) USGSPCode(codes ...string) *Query {
	return q.Filter("usgsPCode", codes...)
}

// StateFips filters by state FIPS codes, e.g. "US:15".
func (q *Query) StateFips(codes ...string) *Query {
	return q.Filter("stateFips", codes...)
}

// CountyFips filters by county FIPS codes, e.g. "US:15:001".
func (q *Query) CountyFips(codes ...string) *Query {
	return q.Filter("countyFips", codes...)
}

// HydrologicUnit filters by hydrologic unit codes.
func (q *Query) HydrologicUnit(hucs ...string) *Query {
	return q.Filter("hydrologicUnit", hucs...)
}

// BoundingBox filters by a (west, south, east, north) box in decimal degrees.
func (q *Query) BoundingBox(west, south, east, north string) *Query {
	return q.Filter("boundingBox", west, south, east, north)
}

// ActivityStartDate filters by an inclusive activity date range in YYYY-MM-DD
// format. Either bound may be empty.
func (q *Query) ActivityStartDate(lower, upper string) *Query {
	q2 := q.Copy()
	if lower != "" {
		q2.params.Set("activityStartDateLower", lower)
	}
	if upper != "" {
		q2.params.Set("activityStartDateUpper", upper)
	}
	return q2
}

// Get retrieves the samples matching the query as CSV. At least one filter is
// required: an unfiltered query would try to pull the entire database.
func Get(ctx context.Context, q *Query) (*table.Table, *query.Metadata, error) {
	if len(q.params) == 0 {
		return nil, nil, errors.Reason(
			"no filter parameters; add at least one filter beyond service and profile")
	}
	p := q.params.Copy()
	p.Set("mimeType", "text/csv")
	resp, err := query.Do(ctx, query.Request{
		URL:    SamplesURL + "/" + q.service + "/" + q.profile,
		Params: p,
	})
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve %s/%s samples",
			q.service, q.profile)
	}
	t, err := table.FromCSV(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse %s/%s samples",
			q.service, q.profile)
	}
	return t, query.NewMetadata(resp, false), nil
}

// GetCodes retrieves the allowable values of a filter from the code service,
// e.g. "characteristicgroup" or "sitetype".
func GetCodes(ctx context.Context, service string) (*table.Table, *query.Metadata, error) {
	p := query.Params{}
	p.Set("mimeType", "application/json")
	resp, err := query.Do(ctx, query.Request{
		URL:    SamplesURL + "/codeservice/" + service,
		Params: p,
	})
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to retrieve %q codes", service)
	}
	var doc struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse %q codes", service)
	}
	var columns []string
	for _, rec := range doc.Data {
		for k := range rec {
			if !slices.Contains(columns, k) {
				columns = append(columns, k)
			}
		}
	}
	slices.Sort(columns)
	t := table.New(columns...)
	for _, rec := range doc.Data {
		cells := make([]table.Value, len(columns))
		for i, k := range columns {
			switch v := rec[k].(type) {
			case nil:
			case string:
				cells[i] = v
			case float64:
				cells[i] = v
			default:
				raw, err := json.Marshal(v)
				if err == nil {
					cells[i] = string(raw)
				}
			}
		}
		t.AddRow(cells...)
	}
	return t, query.NewMetadata(resp, false), nil
}
