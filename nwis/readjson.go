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
	"encoding/json"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/table"
)

type jsonValue struct {
	Value string `json:"value"`
}

type jsonRecord struct {
	Value      string   `json:"value"`
	DateTime   string   `json:"dateTime"`
	Qualifiers []string `json:"qualifiers"`
}

type jsonValueGroup struct {
	Method []struct {
		MethodDescription string `json:"methodDescription"`
	} `json:"method"`
	Value []jsonRecord `json:"value"`
}

type jsonSeries struct {
	SourceInfo struct {
		SiteCode []jsonValue `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []jsonValue `json:"variableCode"`
		Options      struct {
			Option []jsonValue `json:"option"`
		} `json:"options"`
	} `json:"variable"`
	Values []jsonValueGroup `json:"values"`
}

type jsonDoc struct {
	Value struct {
		TimeSeries []jsonSeries `json:"timeSeries"`
	} `json:"value"`
}

func (s *jsonSeries) site() string {
	if len(s.SourceInfo.SiteCode) == 0 {
		return ""
	}
	return s.SourceInfo.SiteCode[0].Value
}

// columnName derives the value column name of one value group: the base
// variable code, then the sanitized method description, then the variable
// suboption (e.g. a daily max vs. mean statistic), underscore-joined.
func (s *jsonSeries) columnName(g *jsonValueGroup) string {
	name := ""
	if len(s.Variable.VariableCode) > 0 {
		name = s.Variable.VariableCode[0].Value
	}
	if len(g.Method) > 0 {
		if m := g.Method[0].MethodDescription; m != "" {
			name += "_" + strings.ToLower(strings.Trim(m, "[]()"))
		}
	}
	if len(s.Variable.Options.Option) > 0 {
		if o := s.Variable.Options.Option[0].Value; o != "" {
			name += "_" + o
		}
	}
	return name
}

// ReadJSON flattens a waterservices time-series document into a table with
// one row per (site_no, datetime) and one value column plus one "_cd"
// qualifier column per series. Series with no records are skipped. When two
// series collide on the same column and key, the later series wins.
func ReadJSON(data []byte) (*table.Table, error) {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Annotate(err, "failed to unmarshal time-series JSON")
	}
	merged := table.New("site_no", "datetime")

	series := doc.Value.TimeSeries
	for i := 0; i < len(series); {
		// One block of consecutive series for the same site. Same-site series
		// separated by another site in the document start a new block, so
		// their (site_no, datetime) rows repeat instead of merging.
		site := series[i].site()
		siteTbl := table.New("datetime")
		for ; i < len(series) && series[i].site() == site; i++ {
			s := &series[i]
			for gi := range s.Values {
				g := &s.Values[gi]
				if len(g.Value) == 0 {
					continue
				}
				col := s.columnName(g)
				rec := table.New("datetime", col, col+"_cd")
				for _, r := range g.Value {
					var v table.Value
					if f, err := strconv.ParseFloat(r.Value, 64); err == nil {
						v = f
					}
					if err := rec.AddRow(r.DateTime, v, strings.Join(r.Qualifiers, ",")); err != nil {
						return nil, errors.Annotate(err, "failed to add record for %q", col)
					}
				}
				var err error
				siteTbl, err = siteTbl.OuterMerge(rec, "datetime")
				if err != nil {
					return nil, errors.Annotate(err, "failed to merge series %q", col)
				}
			}
		}
		if err := siteTbl.AddConstColumn("site_no", site); err != nil {
			return nil, errors.Annotate(err, "failed to set site column for %q", site)
		}
		merged.Concat(siteTbl)
	}
	merged.CoerceTime("datetime")
	return merged, nil
}
