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

// Package query implements the request executor shared by all service
// clients, the typed errors it reports, and the response metadata with lazy
// secondary lookups.
//
// The executor never retries. Transient-failure policy, where one exists at
// all, belongs to the callers (see the pagination walker in waterdata).
package query

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/stockparfait/errors"
)

// Version of the library, reported in the User-Agent header.
const Version = "0.1.0"

var userAgent = "waterfetch/" + Version

// APIKeyVar is the environment variable holding an optional USGS access
// token. When set, its value is sent in the X-Api-Key header for a higher
// rate limit. Its absence is never an error.
const APIKeyVar = "API_USGS_PAT"

type contextKey int

const clientContextKey contextKey = iota

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// UseClient injects an HTTP client into the context, e.g. a test server's
// client in tests.
func UseClient(ctx context.Context, c *http.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// GetClient extracts the HTTP client from the context, defaulting to a
// client with a 30s timeout.
func GetClient(ctx context.Context) *http.Client {
	c, ok := ctx.Value(clientContextKey).(*http.Client)
	if !ok {
		return defaultClient
	}
	return c
}

// Params are query parameters. Multi-valued parameters are joined into a
// single string with the request's delimiter before encoding.
type Params map[string][]string

// Set replaces the values of a parameter.
func (p Params) Set(key string, values ...string) {
	p[key] = values
}

// Has checks whether a parameter is present with at least one value.
func (p Params) Has(key string) bool {
	return len(p[key]) > 0
}

// First returns the first value of a parameter, or "".
func (p Params) First(key string) string {
	if !p.Has(key) {
		return ""
	}
	return p[key][0]
}

// Copy returns a deep copy of the parameters.
func (p Params) Copy() Params {
	res := make(Params, len(p))
	for k, vs := range p {
		res[k] = append([]string{}, vs...)
	}
	return res
}

// Encode joins multi-valued parameters with the delimiter and URL-encodes the
// result.
func (p Params) Encode(delimiter string) string {
	vals := make(url.Values, len(p))
	for k, vs := range p {
		vals.Set(k, strings.Join(vs, delimiter))
	}
	return vals.Encode()
}

// Request describes one service call.
type Request struct {
	Method    string // default: GET
	URL       string // endpoint without the query string
	Params    Params
	Delimiter string // joins multi-valued parameters; default: ","
	Header    http.Header
	Body      []byte // request body, for POST
}

// FullURL is the request URL including the encoded query string.
func (r Request) FullURL() string {
	delim := r.Delimiter
	if delim == "" {
		delim = ","
	}
	if len(r.Params) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Params.Encode(delim)
}

// Response is the outcome of a successful exchange.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	QueryTime  time.Duration
}

// noDataSentinel opens the body the services return for a well-formed query
// that matched nothing, instead of an empty table.
const noDataSentinel = "No sites/data found"

// Do executes a request and returns the raw response. HTTP 400, 404 and 414,
// other non-2xx statuses, and the "no data" sentinel body become typed errors
// (*BadRequestError etc.) which callers can switch on.
func Do(ctx context.Context, r Request) (*Response, error) {
	u := r.FullURL()
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create request for %s", u)
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}
	req.Header.Set("User-Agent", userAgent)
	if key := os.Getenv(APIKeyVar); key != "" && req.Header.Get("X-Api-Key") == "" {
		req.Header.Set("X-Api-Key", key)
	}

	start := time.Now()
	httpResp, err := GetClient(ctx).Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "request failed: %s", u)
	}
	defer httpResp.Body.Close()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read response body: %s", u)
	}

	switch httpResp.StatusCode {
	case http.StatusBadRequest:
		return nil, &BadRequestError{URL: u}
	case http.StatusNotFound:
		return nil, &NotFoundError{URL: u}
	case http.StatusRequestURITooLong:
		return nil, &QueryTooLongError{URL: u, Length: len(u)}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{
			URL:        u,
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
		}
	}
	if strings.HasPrefix(string(respBody), noDataSentinel) {
		return nil, &NoResultsError{URL: u}
	}
	return &Response{
		URL:        u,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		QueryTime:  time.Since(start),
	}, nil
}
