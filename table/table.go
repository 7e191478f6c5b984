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

// Package table implements the tabular container shared by all service
// clients: named columns, loosely typed cells, an optional time or
// (entity, time) index, and the merge / concatenate / sort operations the
// response normalizers are built on.
package table

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// Value is an arbitrary value of a table cell: string, float64, time.Time, or
// nil for a missing value.
type Value interface{}

// IndexKind enumerates the possible index shapes of a Table.
type IndexKind int

// Values for IndexKind.
const (
	IndexNone IndexKind = iota
	IndexTime
	IndexCompound
)

// Index describes how the rows of a Table are keyed. Entity is only set for a
// compound index.
type Index struct {
	Kind   IndexKind
	Entity string
	Time   string
}

// Table is a mutable in-memory table. Rows are slices of cells aligned with
// the column list. Zero rows is a valid table.
type Table struct {
	columns []string
	colIdx  map[string]int
	rows    [][]Value
	index   Index
}

// New creates a Table with the given columns and no rows.
func New(columns ...string) *Table {
	t := &Table{columns: slices.Clone(columns)}
	t.reindexColumns()
	return t
}

func (t *Table) reindexColumns() {
	t.colIdx = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.colIdx[c] = i
	}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// Empty checks whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// HasColumn checks for the presence of a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// Row returns the i'th row. The slice is shared with the table.
func (t *Table) Row(i int) []Value { return t.rows[i] }

// Cell returns the value at a row and column, or nil if the column does not
// exist.
func (t *Table) Cell(row int, column string) Value {
	i, ok := t.colIdx[column]
	if !ok {
		return nil
	}
	return t.rows[row][i]
}

// SetCell overwrites the value at a row and column. A missing column is a
// no-op.
func (t *Table) SetCell(row int, column string, v Value) {
	if i, ok := t.colIdx[column]; ok {
		t.rows[row][i] = v
	}
}

// AddRow appends a row. The number of cells must match the number of columns.
func (t *Table) AddRow(cells ...Value) error {
	if len(cells) != len(t.columns) {
		return errors.Reason("row size [%d] != number of columns [%d]",
			len(cells), len(t.columns))
	}
	t.rows = append(t.rows, cells)
	return nil
}

// Column returns the values of a column in row order, or nil if absent.
func (t *Table) Column(name string) []Value {
	i, ok := t.colIdx[name]
	if !ok {
		return nil
	}
	res := make([]Value, len(t.rows))
	for r, row := range t.rows {
		res[r] = row[i]
	}
	return res
}

// AddColumn appends a new column with the given cells. The column must not
// exist, and the number of cells must match the number of rows.
func (t *Table) AddColumn(name string, cells []Value) error {
	if t.HasColumn(name) {
		return errors.Reason("column %q already exists", name)
	}
	if len(cells) != len(t.rows) {
		return errors.Reason("column %q size [%d] != number of rows [%d]",
			name, len(cells), len(t.rows))
	}
	t.columns = append(t.columns, name)
	t.colIdx[name] = len(t.columns) - 1
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], cells[i])
	}
	return nil
}

// AddConstColumn appends a new column holding the same value in every row.
func (t *Table) AddConstColumn(name string, v Value) error {
	cells := make([]Value, len(t.rows))
	for i := range cells {
		cells[i] = v
	}
	return t.AddColumn(name, cells)
}

// RenameColumn renames a column in place. A missing column is a no-op.
func (t *Table) RenameColumn(old, new string) {
	i, ok := t.colIdx[old]
	if !ok || old == new {
		return
	}
	t.columns[i] = new
	delete(t.colIdx, old)
	t.colIdx[new] = i
}

// DropColumns removes the named columns, ignoring ones that do not exist.
func (t *Table) DropColumns(names ...string) {
	keep := []string{}
	for _, c := range t.columns {
		if !slices.Contains(names, c) {
			keep = append(keep, c)
		}
	}
	if len(keep) == len(t.columns) {
		return
	}
	*t = *t.Select(keep)
}

// Select returns a new table restricted and reordered to the given columns.
// Columns not present in the table are skipped silently. The index is kept
// when its columns survive the selection, downgraded otherwise.
func (t *Table) Select(columns []string) *Table {
	present := []string{}
	for _, c := range columns {
		if t.HasColumn(c) && !slices.Contains(present, c) {
			present = append(present, c)
		}
	}
	res := New(present...)
	for _, row := range t.rows {
		cells := make([]Value, len(present))
		for i, c := range present {
			cells[i] = row[t.colIdx[c]]
		}
		res.rows = append(res.rows, cells)
	}
	res.index = t.index
	if res.index.Kind == IndexCompound && !res.HasColumn(res.index.Entity) {
		res.index = Index{Kind: IndexTime, Time: res.index.Time}
	}
	if res.index.Time != "" && !res.HasColumn(res.index.Time) {
		res.index = Index{}
	}
	return res
}

// NumDistinct counts the distinct non-nil values of a column.
func (t *Table) NumDistinct(column string) int {
	i, ok := t.colIdx[column]
	if !ok {
		return 0
	}
	seen := make(map[string]struct{})
	for _, row := range t.rows {
		if row[i] == nil {
			continue
		}
		seen[FormatValue(row[i])] = struct{}{}
	}
	return len(seen)
}

// Concat appends the rows of another table, aligning columns by name. Columns
// unique to the other table are added and back-filled with nil.
func (t *Table) Concat(other *Table) {
	for _, c := range other.columns {
		if !t.HasColumn(c) {
			_ = t.AddConstColumn(c, nil)
		}
	}
	for _, row := range other.rows {
		cells := make([]Value, len(t.columns))
		for i, c := range t.columns {
			if j, ok := other.colIdx[c]; ok {
				cells[i] = row[j]
			}
		}
		t.rows = append(t.rows, cells)
	}
}

// OuterMerge merges two tables on the given key columns with full outer join
// semantics: the result has one row per distinct key tuple present in either
// table, with nil cells where one side has no row for it. For non-key columns
// the tables share, the other (right) table's value wins whenever it has a
// row for the key.
func (t *Table) OuterMerge(other *Table, on ...string) (*Table, error) {
	for _, k := range on {
		if !t.HasColumn(k) || !other.HasColumn(k) {
			return nil, errors.Reason("merge key %q missing from one of the tables", k)
		}
	}
	columns := slices.Clone(t.columns)
	for _, c := range other.columns {
		if !slices.Contains(columns, c) {
			columns = append(columns, c)
		}
	}
	res := New(columns...)
	res.index = t.index

	key := func(tbl *Table, row []Value) string {
		s := ""
		for _, k := range on {
			s += FormatValue(row[tbl.colIdx[k]]) + "\x00"
		}
		return s
	}
	rightRows := make(map[string][]Value, len(other.rows))
	rightOrder := []string{}
	for _, row := range other.rows {
		k := key(other, row)
		if _, ok := rightRows[k]; !ok {
			rightOrder = append(rightOrder, k)
		}
		rightRows[k] = row
	}
	leftKeys := make(map[string]struct{}, len(t.rows))
	for _, row := range t.rows {
		k := key(t, row)
		leftKeys[k] = struct{}{}
		cells := make([]Value, len(columns))
		for i, c := range columns {
			if j, ok := t.colIdx[c]; ok {
				cells[i] = row[j]
			}
			if right, ok := rightRows[k]; ok {
				if j, ok := other.colIdx[c]; ok {
					cells[i] = right[j]
				}
			}
		}
		res.rows = append(res.rows, cells)
	}
	for _, k := range rightOrder {
		if _, ok := leftKeys[k]; ok {
			continue
		}
		right := rightRows[k]
		cells := make([]Value, len(columns))
		for i, c := range columns {
			if j, ok := other.colIdx[c]; ok {
				cells[i] = right[j]
			}
		}
		res.rows = append(res.rows, cells)
	}
	return res, nil
}

// Filter returns a new table with the rows for which keep returns true,
// preserving order and index.
func (t *Table) Filter(keep func(row int) bool) *Table {
	res := New(t.columns...)
	res.index = t.index
	for i, row := range t.rows {
		if keep(i) {
			res.rows = append(res.rows, row)
		}
	}
	return res
}

// SetTimeIndex marks the table as indexed by a single time column.
func (t *Table) SetTimeIndex(timeColumn string) {
	t.index = Index{Kind: IndexTime, Time: timeColumn}
}

// SetCompoundIndex marks the table as indexed by (entity, time).
func (t *Table) SetCompoundIndex(entity, timeColumn string) {
	t.index = Index{Kind: IndexCompound, Entity: entity, Time: timeColumn}
}

// Index returns the current index descriptor.
func (t *Table) Index() Index { return t.index }

// lessValue orders cells of the same kind; nil sorts last.
func lessValue(a, b Value) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	}
	ta, aok := asTime(a)
	tb, bok := asTime(b)
	if aok && bok {
		return ta.Before(tb)
	}
	return FormatValue(a) < FormatValue(b)
}

// SortBy stably sorts rows by the given columns in order; nil cells sort last
// within each column. Unknown columns are skipped.
func (t *Table) SortBy(columns ...string) {
	idx := []int{}
	for _, c := range columns {
		if i, ok := t.colIdx[c]; ok {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		for _, c := range idx {
			a, b := t.rows[i][c], t.rows[j][c]
			if lessValue(a, b) {
				return true
			}
			if lessValue(b, a) {
				return false
			}
		}
		return false
	})
}

// SortByIndex sorts rows by the table's index, entity first for a compound
// index. Tables without an index are left untouched.
func (t *Table) SortByIndex() {
	switch t.index.Kind {
	case IndexTime:
		t.SortBy(t.index.Time)
	case IndexCompound:
		t.SortBy(t.index.Entity, t.index.Time)
	}
}

// FromCSV reads a comma-delimited table with a header row. All cells are kept
// as strings; empty cells become nil.
func FromCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read CSV header")
	}
	t := New(header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV row %d", t.NumRows()+1)
		}
		cells := make([]Value, len(rec))
		for i, s := range rec {
			if s != "" {
				cells[i] = s
			}
		}
		if err := t.AddRow(cells...); err != nil {
			return nil, errors.Annotate(err, "failed to add CSV row")
		}
	}
	return t, nil
}
