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

package nwis

import (
	"context"

	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
)

// siteInfoKeys are the site-identifying parameters, in precedence order, that
// make the SiteInfo lookup available.
var siteInfoKeys = []string{
	"site_no", "sites", "stateCd", "huc", "countyCd", "bBox"}

// newMetadata builds response metadata with deferred SiteInfo and
// VariableInfo lookups derived from the originating request parameters.
// Building it performs no network I/O; each Resolve issues a fresh call.
func newMetadata(resp *query.Response, p query.Params, withComment bool) *query.Metadata {
	md := query.NewMetadata(resp, withComment)
	md.SiteInfo = query.NewDeferred(siteLookup(p))
	md.VariableInfo = query.NewDeferred(variableLookup(p))
	return md
}

func siteLookup(p query.Params) query.Lookup {
	for _, key := range siteInfoKeys {
		if !p.Has(key) {
			continue
		}
		vals := append([]string{}, p[key]...)
		if key == "site_no" {
			key = "sites"
		}
		k := key
		return func(ctx context.Context) (*table.Table, *query.Metadata, error) {
			return WhatSites(ctx, NewQuery().Param(k, vals...))
		}
	}
	return nil
}

func variableLookup(p query.Params) query.Lookup {
	if !p.Has("parameterCd") {
		return nil
	}
	vals := append([]string{}, p["parameterCd"]...)
	return func(ctx context.Context) (*table.Table, *query.Metadata, error) {
		return GetPmcodes(ctx, vals, true)
	}
}
