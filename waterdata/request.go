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
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/query"
	"golang.org/x/exp/slices"
)

// singleParams can carry only one value and never move to the POST body.
var singleParams = []string{"datetime", "last_modified", "begin", "end", "time"}

// FormatAPIDates formats a time filter for the API: one value, or two values
// forming a "start/end" range. Accepted inputs are "YYYY-MM-DD HH:MM:SS",
// "YYYY-MM-DD", relative periods like "P7D", and preformatted ranges, which
// pass through unchanged. With dateOnly, only the date portion is used;
// otherwise naive inputs are interpreted in local time and converted to UTC
// ISO 8601.
func FormatAPIDates(values []string, dateOnly bool) (string, error) {
	var in []string
	for _, v := range values {
		if v != "" {
			in = append(in, v)
		}
	}
	if len(in) == 0 {
		return "", nil
	}
	if len(in) > 2 {
		return "", errors.Reason("time filter accepts 1-2 values, got %d", len(in))
	}
	if len(in) == 1 &&
		(strings.ContainsAny(in[0], "Pp") || strings.Contains(in[0], "/")) {
		return in[0], nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		tm, err := time.ParseInLocation("2006-01-02 15:04:05", v, time.Local)
		if err != nil {
			tm, err = time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				return "", errors.Annotate(err, "failed to parse time filter %q", v)
			}
		}
		if dateOnly {
			out[i] = tm.Format("2006-01-02")
		} else {
			out[i] = tm.UTC().Format("2006-01-02T15:04:05") + "Z"
		}
	}
	return strings.Join(out, "/"), nil
}

// cql2Body encodes multi-valued filters as a CQL2 JSON conjunction of "in"
// clauses. Keys are sorted for a deterministic body.
func cql2Body(filters map[string][]string) ([]byte, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = map[string]interface{}{
			"op":   "in",
			"args": []interface{}{map[string]string{"property": k}, filters[k]},
		}
	}
	body, err := json.Marshal(map[string]interface{}{"op": "and", "args": args})
	if err != nil {
		return nil, errors.Annotate(err, "failed to marshal CQL2 body")
	}
	return body, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"Accept-Encoding": []string{"compress, gzip"},
		"Accept":          []string{"application/json"},
		"Lang":            []string{"en-US"},
	}
}

// buildRequest constructs the items request of a collection. Filters with
// more than one value (other than time filters) require a POST with a CQL2
// body; everything else rides in the URL.
func (q *Query) buildRequest() (query.Request, error) {
	req := query.Request{
		URL:    APIURL + "/collections/" + q.service.Name + "/items",
		Header: defaultHeaders(),
		Params: query.Params{},
	}

	postFilters := map[string][]string{}
	for k, vs := range q.filters {
		if len(vs) > 1 && !slices.Contains(singleParams, k) {
			postFilters[k] = vs
			continue
		}
		if slices.Contains(singleParams, k) {
			dateOnly := q.service.DateOnly && k != "last_modified"
			formatted, err := FormatAPIDates(vs, dateOnly)
			if err != nil {
				return query.Request{}, err
			}
			if formatted != "" {
				req.Params.Set(k, formatted)
			}
			continue
		}
		req.Params.Set(k, vs...)
	}

	req.Params.Set("skipGeometry", strconv.FormatBool(q.skipGeometry))
	limit := q.limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	req.Params.Set("limit", strconv.Itoa(limit))
	if len(q.bbox) > 0 {
		req.Params.Set("bbox", q.bbox...)
	}
	if props := q.requestProperties(); len(props) > 0 {
		req.Params.Set("properties", props...)
	}

	if len(postFilters) > 0 {
		body, err := cql2Body(postFilters)
		if err != nil {
			return query.Request{}, err
		}
		req.Method = http.MethodPost
		req.Body = body
		req.Header.Set("Content-Type", "application/query-cql-json")
	}
	return req, nil
}
