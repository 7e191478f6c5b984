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

// Package stats computes local summary statistics over retrieved series,
// without another trip to the services.
package stats

import (
	"sort"

	"github.com/stockparfait/errors"
	"github.com/waterfetch/waterfetch/table"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of one numeric column. Missing counts
// the cells that are null or non-numeric.
type Summary struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	Sigma   float64
	Min     float64
	Max     float64
	Q1      float64 // 25th percentile
	Median  float64
	Q3      float64 // 75th percentile
}

// columnData collects the numeric cells of a column in sorted order.
func columnData(t *table.Table, column string) (data []float64, missing int) {
	for row := 0; row < t.NumRows(); row++ {
		v, ok := t.Cell(row, column).(float64)
		if !ok {
			missing++
			continue
		}
		data = append(data, v)
	}
	sort.Float64s(data)
	return data, missing
}

// Summarize computes the summary of one numeric column. A column with no
// numeric cells yields a zero-valued summary with only the counts set.
func Summarize(t *table.Table, column string) (*Summary, error) {
	if !t.HasColumn(column) {
		return nil, errors.Reason("no column %q in the table", column)
	}
	data, missing := columnData(t, column)
	s := &Summary{Column: column, Count: len(data), Missing: missing}
	if len(data) == 0 {
		return s, nil
	}
	s.Mean = stat.Mean(data, nil)
	s.Sigma = stat.StdDev(data, nil)
	s.Min = data[0]
	s.Max = data[len(data)-1]
	s.Q1 = stat.Quantile(0.25, stat.Empirical, data, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, data, nil)
	s.Q3 = stat.Quantile(0.75, stat.Empirical, data, nil)
	return s, nil
}

// SummarizeAll computes summaries for every column with at least one numeric
// cell, in column order.
func SummarizeAll(t *table.Table) []*Summary {
	var res []*Summary
	for _, c := range t.Columns() {
		s, err := Summarize(t, c)
		if err != nil || s.Count == 0 {
			continue
		}
		res = append(res, s)
	}
	return res
}

// Table renders summaries as a table, one row per column, for text or CSV
// output.
func Table(summaries []*Summary) *table.Table {
	t := table.New("column", "count", "missing", "mean", "sigma", "min",
		"q1", "median", "q3", "max")
	for _, s := range summaries {
		t.AddRow(s.Column, float64(s.Count), float64(s.Missing), s.Mean, s.Sigma,
			s.Min, s.Q1, s.Median, s.Q3, s.Max)
	}
	return t
}
