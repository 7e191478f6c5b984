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

package table

import (
	"bytes"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Table methods work", t, func() {
		tbl := New("site_no", "value")
		So(tbl.AddRow("01646500", 12.5), ShouldBeNil)
		So(tbl.AddRow("01491000", nil), ShouldBeNil)

		Convey("basic accessors", func() {
			So(tbl.Columns(), ShouldResemble, []string{"site_no", "value"})
			So(tbl.NumRows(), ShouldEqual, 2)
			So(tbl.Empty(), ShouldBeFalse)
			So(tbl.HasColumn("value"), ShouldBeTrue)
			So(tbl.HasColumn("nope"), ShouldBeFalse)
			So(tbl.Cell(0, "value"), ShouldEqual, 12.5)
			So(tbl.Cell(1, "value"), ShouldBeNil)
			So(tbl.Column("site_no"), ShouldResemble,
				[]Value{"01646500", "01491000"})
		})

		Convey("AddRow checks arity", func() {
			So(tbl.AddRow("x"), ShouldNotBeNil)
		})

		Convey("AddColumn and AddConstColumn", func() {
			So(tbl.AddColumn("qualifiers", []Value{"A", "P"}), ShouldBeNil)
			So(tbl.Cell(1, "qualifiers"), ShouldEqual, "P")
			So(tbl.AddColumn("qualifiers", []Value{"A", "P"}), ShouldNotBeNil)
			So(tbl.AddColumn("short", []Value{"A"}), ShouldNotBeNil)
			So(tbl.AddConstColumn("agency_cd", "USGS"), ShouldBeNil)
			So(tbl.Column("agency_cd"), ShouldResemble, []Value{"USGS", "USGS"})
		})

		Convey("RenameColumn", func() {
			tbl.RenameColumn("value", "00060")
			So(tbl.HasColumn("value"), ShouldBeFalse)
			So(tbl.Cell(0, "00060"), ShouldEqual, 12.5)
		})

		Convey("Select keeps requested order and skips unknowns", func() {
			sel := tbl.Select([]string{"value", "nope", "site_no", "value"})
			So(sel.Columns(), ShouldResemble, []string{"value", "site_no"})
			So(sel.NumRows(), ShouldEqual, 2)
			So(sel.Cell(0, "site_no"), ShouldEqual, "01646500")
		})

		Convey("DropColumns", func() {
			tbl.DropColumns("value", "nope")
			So(tbl.Columns(), ShouldResemble, []string{"site_no"})
		})

		Convey("NumDistinct ignores nils", func() {
			So(tbl.NumDistinct("site_no"), ShouldEqual, 2)
			So(tbl.NumDistinct("value"), ShouldEqual, 1)
			So(tbl.NumDistinct("nope"), ShouldEqual, 0)
		})

		Convey("Filter keeps matching rows", func() {
			f := tbl.Filter(func(i int) bool { return tbl.Cell(i, "value") != nil })
			So(f.NumRows(), ShouldEqual, 1)
			So(f.Cell(0, "site_no"), ShouldEqual, "01646500")
		})

		Convey("Concat aligns columns by name", func() {
			other := New("value", "site_no", "extra")
			So(other.AddRow(7.0, "05585000", "x"), ShouldBeNil)
			tbl.Concat(other)
			So(tbl.NumRows(), ShouldEqual, 3)
			So(tbl.Cell(2, "site_no"), ShouldEqual, "05585000")
			So(tbl.Cell(2, "value"), ShouldEqual, 7.0)
			So(tbl.Cell(0, "extra"), ShouldBeNil)
			So(tbl.Cell(2, "extra"), ShouldEqual, "x")
		})
	})
}

func TestOuterMerge(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2023, 5, 3, 0, 0, 0, 0, time.UTC)

	Convey("OuterMerge joins on keys with right-wins overlap", t, func() {
		left := New("site_no", "datetime", "00060")
		So(left.AddRow("s1", d1, 1.0), ShouldBeNil)
		So(left.AddRow("s1", d2, 2.0), ShouldBeNil)

		right := New("site_no", "datetime", "00065", "00060")
		So(right.AddRow("s1", d2, 5.5, 20.0), ShouldBeNil)
		So(right.AddRow("s1", d3, 6.5, 30.0), ShouldBeNil)

		m, err := left.OuterMerge(right, "site_no", "datetime")
		So(err, ShouldBeNil)
		So(m.Columns(), ShouldResemble,
			[]string{"site_no", "datetime", "00060", "00065"})
		So(m.NumRows(), ShouldEqual, 3)

		Convey("left-only row keeps nil for right columns", func() {
			So(m.Cell(0, "00060"), ShouldEqual, 1.0)
			So(m.Cell(0, "00065"), ShouldBeNil)
		})

		Convey("shared key takes the right value for shared columns", func() {
			So(m.Cell(1, "00060"), ShouldEqual, 20.0)
			So(m.Cell(1, "00065"), ShouldEqual, 5.5)
		})

		Convey("right-only row keeps nil for left-only columns", func() {
			So(m.Cell(2, "datetime"), ShouldEqual, d3)
			So(m.Cell(2, "00065"), ShouldEqual, 6.5)
		})

		Convey("missing merge key is an error", func() {
			_, err := left.OuterMerge(New("x"), "site_no")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSorting(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC)

	Convey("SortBy and SortByIndex", t, func() {
		tbl := New("site_no", "datetime")
		So(tbl.AddRow("s2", d1), ShouldBeNil)
		So(tbl.AddRow("s1", d2), ShouldBeNil)
		So(tbl.AddRow("s1", nil), ShouldBeNil)
		So(tbl.AddRow("s1", d1), ShouldBeNil)

		Convey("nil timestamps sort last", func() {
			tbl.SortBy("datetime")
			So(tbl.Cell(0, "datetime"), ShouldEqual, d1)
			So(tbl.Cell(3, "datetime"), ShouldBeNil)
		})

		Convey("compound index sorts by entity, then time", func() {
			tbl.SetCompoundIndex("site_no", "datetime")
			tbl.SortByIndex()
			So(tbl.Cell(0, "site_no"), ShouldEqual, "s1")
			So(tbl.Cell(0, "datetime"), ShouldEqual, d1)
			So(tbl.Cell(1, "datetime"), ShouldEqual, d2)
			So(tbl.Cell(2, "datetime"), ShouldBeNil)
			So(tbl.Cell(3, "site_no"), ShouldEqual, "s2")
		})

		Convey("index survives a Select that keeps its columns", func() {
			tbl.SetCompoundIndex("site_no", "datetime")
			sel := tbl.Select([]string{"datetime", "site_no"})
			So(sel.Index().Kind, ShouldEqual, IndexCompound)

			Convey("and downgrades when the entity column is dropped", func() {
				sel := tbl.Select([]string{"datetime"})
				So(sel.Index().Kind, ShouldEqual, IndexTime)
			})
		})
	})
}

func TestTimeCoercion(t *testing.T) {
	t.Parallel()

	Convey("ParseTime handles service formats in UTC", t, func() {
		tm, err := ParseTime("2023-05-01T10:30:00.000-05:00")
		So(err, ShouldBeNil)
		So(tm, ShouldEqual, time.Date(2023, 5, 1, 15, 30, 0, 0, time.UTC))

		tm, err = ParseTime("2023-05-01 10:30")
		So(err, ShouldBeNil)
		So(tm, ShouldEqual, time.Date(2023, 5, 1, 10, 30, 0, 0, time.UTC))

		tm, err = ParseTime("2023-05-01")
		So(err, ShouldBeNil)
		So(tm, ShouldEqual, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))

		_, err = ParseTime("2023-05-00 garbage")
		So(err, ShouldNotBeNil)
	})

	Convey("CoerceTime converts once and counts failures", t, func() {
		already := time.Date(2023, 5, 1, 5, 0, 0, 0, time.UTC)
		tbl := New("datetime")
		So(tbl.AddRow("2023-05-01T00:00:00-05:00"), ShouldBeNil)
		So(tbl.AddRow(already), ShouldBeNil)
		So(tbl.AddRow("not a date"), ShouldBeNil)
		So(tbl.AddRow(nil), ShouldBeNil)

		So(tbl.CoerceTime("datetime"), ShouldEqual, 2)
		So(tbl.Cell(0, "datetime"), ShouldEqual,
			time.Date(2023, 5, 1, 5, 0, 0, 0, time.UTC))
		So(tbl.Cell(1, "datetime"), ShouldEqual, already)
		So(tbl.Cell(2, "datetime"), ShouldBeNil)

		Convey("a second pass changes nothing", func() {
			So(tbl.CoerceTime("datetime"), ShouldEqual, 2)
			So(tbl.Cell(1, "datetime"), ShouldEqual, already)
		})
	})

	Convey("CoerceNumeric", t, func() {
		tbl := New("value")
		So(tbl.AddRow("12.5"), ShouldBeNil)
		So(tbl.AddRow(3.0), ShouldBeNil)
		So(tbl.AddRow("Ice"), ShouldBeNil)

		So(tbl.CoerceNumeric("value"), ShouldEqual, 1)
		So(tbl.Cell(0, "value"), ShouldEqual, 12.5)
		So(tbl.Cell(1, "value"), ShouldEqual, 3.0)
		So(tbl.Cell(2, "value"), ShouldBeNil)
	})
}

func TestCSV(t *testing.T) {
	t.Parallel()

	Convey("FromCSV and WriteCSV round-trip", t, func() {
		in := "site_no,value\n01646500,12.5\n01491000,\n"
		tbl, err := FromCSV(strings.NewReader(in))
		So(err, ShouldBeNil)
		So(tbl.NumRows(), ShouldEqual, 2)
		So(tbl.Cell(1, "value"), ShouldBeNil)

		var buf bytes.Buffer
		So(tbl.WriteCSV(&buf, Params{}), ShouldBeNil)
		So(buf.String(), ShouldEqual, in)

		Convey("Rows limit and NoHeader", func() {
			var buf bytes.Buffer
			So(tbl.WriteCSV(&buf, Params{Rows: 1, NoHeader: true}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "01646500,12.5\n")
		})
	})

	Convey("WriteText", t, func() {
		tbl := New("site_no", "value")
		So(tbl.AddRow("01646500", 12.5), ShouldBeNil)

		var buf bytes.Buffer
		So(tbl.WriteText(&buf, Params{}), ShouldBeNil)
		So("\n"+buf.String(), ShouldEqual, `
 site_no | value
-------- | -----
01646500 |  12.5
`)

		Convey("MaxColWidth must be 0 or >= 4", func() {
			So(tbl.WriteText(&buf, Params{MaxColWidth: 2}), ShouldNotBeNil)
		})

		Convey("long cells are trimmed", func() {
			var buf bytes.Buffer
			So(tbl.WriteText(&buf, Params{MaxColWidth: 5, NoHeader: true}),
				ShouldBeNil)
			So(buf.String(), ShouldEqual, "016.. | 12.5\n")
		})
	})
}
