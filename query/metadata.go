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

package query

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/table"
)

// Lookup is a secondary metadata lookup, typically another service call.
type Lookup func(ctx context.Context) (*table.Table, *Metadata, error)

// Deferred is a lazily evaluated secondary lookup. Resolve issues a fresh
// call on every invocation; results are never memoized, so two Resolve calls
// may observe different upstream data.
type Deferred struct {
	lookup Lookup
}

// NewDeferred wraps a lookup. A nil lookup yields an unavailable Deferred.
func NewDeferred(lookup Lookup) *Deferred {
	return &Deferred{lookup: lookup}
}

// Available checks whether the lookup can be resolved for the originating
// query. It never performs network I/O.
func (d *Deferred) Available() bool {
	return d != nil && d.lookup != nil
}

// Resolve evaluates the lookup.
func (d *Deferred) Resolve(ctx context.Context) (*table.Table, *Metadata, error) {
	if !d.Available() {
		return nil, nil, errors.Reason("lookup is not available for this query")
	}
	return d.lookup(ctx)
}

// Metadata describes the request that produced a result. URL, QueryTime,
// Header and Comment are populated eagerly from the first response; SiteInfo
// and VariableInfo are deferred lookups resolved only on demand.
type Metadata struct {
	URL       string
	QueryTime time.Duration
	Header    http.Header
	Comment   string

	SiteInfo     *Deferred
	VariableInfo *Deferred
}

// Comment extracts the comment block of an annotated response body: every
// leading-marker line with the markers stripped, newline-joined. Formats
// without comments yield "".
func Comment(body []byte) string {
	var lines []string
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, strings.TrimSpace(strings.TrimLeft(line, "#")))
	}
	return strings.Join(lines, "\n")
}

// NewMetadata builds eager metadata from a response. withComment extracts the
// comment block for comment-annotated formats.
func NewMetadata(resp *Response, withComment bool) *Metadata {
	md := &Metadata{
		URL:       resp.URL,
		QueryTime: resp.QueryTime,
		Header:    resp.Header,
	}
	if withComment {
		md.Comment = Comment(resp.Body)
	}
	return md
}
