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
	"strconv"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
	"golang.org/x/exp/slices"
)

type pageFeature struct {
	ID         string                 `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type pageLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type page struct {
	NumberReturned int           `json:"numberReturned"`
	Features       []pageFeature `json:"features"`
	Links          []pageLink    `json:"links"`
}

// nextURL finds the "next" link of a page. An empty page never has a next
// URL: a zero or absent numberReturned terminates pagination.
func (p *page) nextURL() string {
	if p.NumberReturned == 0 {
		return ""
	}
	for _, link := range p.Links {
		if link.Rel == "next" {
			return link.Href
		}
	}
	return ""
}

func cellValue(v interface{}) table.Value {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case float64:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(raw)
	}
}

// pageTable converts the features of one page to a table: an "id" column,
// the property columns in sorted order, and a "geometry" column when any
// feature carries one.
func (p *page) table() *table.Table {
	if p.NumberReturned == 0 || len(p.Features) == 0 {
		return table.New()
	}
	var props []string
	hasGeometry := false
	for _, f := range p.Features {
		for k := range f.Properties {
			if !slices.Contains(props, k) {
				props = append(props, k)
			}
		}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			hasGeometry = true
		}
	}
	slices.Sort(props)
	columns := append([]string{"id"}, props...)
	if hasGeometry {
		columns = append(columns, "geometry")
	}
	t := table.New(columns...)
	for _, f := range p.Features {
		cells := make([]table.Value, 0, len(columns))
		cells = append(cells, f.ID)
		for _, k := range props {
			cells = append(cells, cellValue(f.Properties[k]))
		}
		if hasGeometry {
			var g table.Value
			if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
				g = string(f.Geometry)
			}
			cells = append(cells, g)
		}
		t.AddRow(cells...)
	}
	return t
}

// friendlyError rewords the rate limit and denial statuses, which are the
// usual failure modes of large unauthenticated queries.
func friendlyError(err error) error {
	se, ok := err.(*query.StatusError)
	if !ok {
		return err
	}
	switch se.StatusCode {
	case 429:
		return errors.Annotate(err,
			"too many requests; obtain an API token or try again later")
	case 403:
		return errors.Annotate(err,
			"query request denied; it may exceed server limits")
	}
	return err
}

// walkPages fetches all pages of a request sequentially, following "next"
// links and concatenating rows in page order. A first page failure is fatal.
// A later page failure emits a warning and stops the walk, returning what was
// accumulated. The first page's response is returned for metadata.
func walkPages(ctx context.Context, req query.Request) (*table.Table, *query.Response, error) {
	logging.Infof(ctx, "requesting %s", req.FullURL())
	resp, err := query.Do(ctx, req)
	if err != nil {
		return nil, nil, friendlyError(err)
	}
	first := resp

	var p page
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, nil, errors.Annotate(err, "failed to parse page from %s", resp.URL)
	}
	t := p.table()
	pageCount := 1

	for next := p.nextURL(); next != ""; {
		logging.Infof(ctx, "fetching page %d: %s", pageCount+1, next)
		// Reuse the method, headers and body of the original request; only
		// the URL changes.
		resp, err = query.Do(ctx, query.Request{
			Method: req.Method,
			URL:    next,
			Header: req.Header,
			Body:   req.Body,
		})
		if err != nil {
			logging.Warningf(ctx,
				"page %d failed, stopping pagination with %d pages retrieved, "+
					"1 or more pages skipped, data request incomplete: %s",
				pageCount+1, pageCount, friendlyError(err).Error())
			break
		}
		p = page{}
		if err := json.Unmarshal(resp.Body, &p); err != nil {
			logging.Warningf(ctx,
				"page %d unparseable, stopping pagination with %d pages retrieved: %s",
				pageCount+1, pageCount, err.Error())
			break
		}
		t.Concat(p.table())
		pageCount++
		next = p.nextURL()
	}
	return t, first, nil
}
