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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/waterfetch/waterfetch/query"
	"github.com/waterfetch/waterfetch/table"
)

func TestFormatAPIDates(t *testing.T) {
	t.Parallel()

	Convey("FormatAPIDates", t, func() {
		Convey("empty input yields no filter", func() {
			s, err := FormatAPIDates(nil, false)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "")

			s, err = FormatAPIDates([]string{""}, false)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "")
		})

		Convey("periods and preformatted ranges pass through", func() {
			s, err := FormatAPIDates([]string{"P7D"}, false)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "P7D")

			s, err = FormatAPIDates([]string{"2023-01-01/2023-02-01"}, true)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "2023-01-01/2023-02-01")
		})

		Convey("date-only services keep the date portion", func() {
			s, err := FormatAPIDates([]string{"2023-01-01", "2023-02-01"}, true)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "2023-01-01/2023-02-01")

			s, err = FormatAPIDates([]string{"2023-01-01 10:30:00"}, true)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "2023-01-01")
		})

		Convey("naive datetimes convert from local time to UTC", func() {
			local, err := time.ParseInLocation(
				"2006-01-02 15:04:05", "2023-01-01 10:30:00", time.Local)
			So(err, ShouldBeNil)
			want := local.UTC().Format("2006-01-02T15:04:05") + "Z"

			s, err := FormatAPIDates([]string{"2023-01-01 10:30:00"}, false)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, want)
		})

		Convey("more than two values is an error", func() {
			_, err := FormatAPIDates(
				[]string{"2023-01-01", "2023-01-02", "2023-01-03"}, false)
			So(err, ShouldNotBeNil)
		})

		Convey("garbage is an error", func() {
			_, err := FormatAPIDates([]string{"yesterday"}, false)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestQueryBuilder(t *testing.T) {
	t.Parallel()

	Convey("NewQuery rejects unknown collections", t, func() {
		_, err := NewQuery("annual")
		So(err, ShouldNotBeNil)
	})

	Convey("modifiers copy the query", t, func() {
		q, err := NewQuery("daily")
		So(err, ShouldBeNil)
		q2 := q.ParameterCode("00060")
		So(len(q.filters), ShouldEqual, 0)
		So(q2.filters["parameter_code"], ShouldResemble, []string{"00060"})
	})

	Convey("service id names alias the generic id", t, func() {
		q, err := NewQuery("daily")
		So(err, ShouldBeNil)
		q = q.Filter("daily_id", "abc")
		So(q.filters["id"], ShouldResemble, []string{"abc"})

		ml, err := NewQuery("monitoring-locations")
		So(err, ShouldBeNil)
		ml = ml.MonitoringLocationID("USGS-02238500")
		So(ml.filters["id"], ShouldResemble, []string{"USGS-02238500"})
	})

	Convey("requested properties map the id name both ways", t, func() {
		q, err := NewQuery("daily")
		So(err, ShouldBeNil)
		q = q.Properties("daily_id", "value")
		So(q.requestProperties(), ShouldResemble, []string{"id", "value"})
		So(q.resultProperties(), ShouldResemble, []string{"daily_id", "value"})
	})
}

// feature builds one GeoJSON feature with a numeric value and a time.
func feature(id, tm string, value float64) string {
	return `{"id": "` + id + `", "geometry": null, "properties": {` +
		`"time": "` + tm + `", "value": ` + table.FormatValue(value) + `}}`
}

// pageJSON builds one result page; an empty next URL omits the link.
func pageJSON(next string, features ...string) string {
	links := ""
	if next != "" {
		links = `{"rel": "next", "href": "` + next + `"}`
	}
	body := ""
	for i, f := range features {
		if i > 0 {
			body += ","
		}
		body += f
	}
	return `{"numberReturned": ` + table.FormatValue(float64(len(features))) +
		`, "features": [` + body + `], "links": [` + links + `]}`
}

func TestGet(t *testing.T) {
	// No t.Parallel: tests repoint the package-level API URL.

	server := query.NewTestServer()
	defer server.Close()
	ctx := query.UseClient(context.Background(), server.Client())

	APIURL = server.URL() + "/ogcapi/v0"
	next := APIURL + "/collections/daily/items?next=true"

	reset := func(bodies []string, statuses []int) {
		server.NumRequests = 0
		server.ResponseBody = bodies
		server.ResponseStatus = statuses
	}

	daily, err := NewQuery("daily")
	if err != nil {
		t.Fatal(err)
	}

	Convey("single-valued filters ride in the URL", t, func() {
		reset([]string{pageJSON("", feature("a", "2023-01-01", 1))}, nil)

		q := daily.ParameterCode("00060").Time("2023-01-01", "2023-02-01").
			Limit(10).SkipGeometry(true)
		_, md, err := Get(ctx, q)
		So(err, ShouldBeNil)
		So(server.NumRequests, ShouldEqual, 1)
		So(server.RequestMethod, ShouldEqual, "GET")
		So(server.RequestPath, ShouldEqual, "/ogcapi/v0/collections/daily/items")
		So(server.RequestQuery.Get("parameter_code"), ShouldEqual, "00060")
		So(server.RequestQuery.Get("datetime"), ShouldEqual, "")
		So(server.RequestQuery.Get("time"), ShouldEqual, "2023-01-01/2023-02-01")
		So(server.RequestQuery.Get("limit"), ShouldEqual, "10")
		So(server.RequestQuery.Get("skipGeometry"), ShouldEqual, "true")
		So(md.URL, ShouldContainSubstring, "/collections/daily/items")
	})

	Convey("limits outside the accepted range are clamped", t, func() {
		reset([]string{pageJSON("", feature("a", "2023-01-01", 1))}, nil)

		_, _, err := Get(ctx, daily.Limit(1000000))
		So(err, ShouldBeNil)
		So(server.RequestQuery.Get("limit"), ShouldEqual, "50000")

		_, _, err = Get(ctx, daily)
		So(err, ShouldBeNil)
		So(server.RequestQuery.Get("limit"), ShouldEqual, "50000")
	})

	Convey("multi-valued filters switch to POST with a CQL2 body", t, func() {
		reset([]string{pageJSON("", feature("a", "2023-01-01", 1))}, nil)

		q := daily.MonitoringLocationID("USGS-01491000", "USGS-05114000").
			ParameterCode("00060", "00065")
		_, _, err := Get(ctx, q)
		So(err, ShouldBeNil)
		So(server.RequestMethod, ShouldEqual, "POST")
		So(server.RequestHeader.Get("Content-Type"), ShouldEqual,
			"application/query-cql-json")
		So(server.RequestBody, ShouldContainSubstring, `"op":"and"`)
		So(server.RequestBody, ShouldContainSubstring,
			`{"property":"monitoring_location_id"},["USGS-01491000","USGS-05114000"]`)
		So(server.RequestBody, ShouldContainSubstring,
			`{"property":"parameter_code"},["00060","00065"]`)
		// Multi-valued time filters stay in the URL.
		So(server.RequestQuery.Get("skipGeometry"), ShouldEqual, "false")
	})

	Convey("all pages are walked and concatenated in order", t, func() {
		reset([]string{
			pageJSON(next, feature("a", "2023-01-01", 1)),
			pageJSON(next, feature("b", "2023-01-02", 2)),
			pageJSON("", feature("c", "2023-01-03", 3)),
		}, nil)

		tbl, _, err := Get(ctx, daily)
		So(err, ShouldBeNil)
		So(server.NumRequests, ShouldEqual, 3)
		So(tbl.NumRows(), ShouldEqual, 3)
		So(tbl.Columns(), ShouldResemble, []string{"time", "value", "daily_id"})
		So(tbl.Cell(0, "daily_id"), ShouldEqual, "a")
		So(tbl.Cell(1, "daily_id"), ShouldEqual, "b")
		So(tbl.Cell(2, "daily_id"), ShouldEqual, "c")
		So(tbl.Cell(2, "value"), ShouldEqual, 3.0)
		So(tbl.Cell(0, "time"), ShouldEqual,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	})

	Convey("a zero numberReturned terminates pagination", t, func() {
		reset([]string{
			`{"numberReturned": 0, "features": [], "links": [` +
				`{"rel": "next", "href": "` + next + `"}]}`,
		}, nil)

		tbl, _, err := Get(ctx, daily.Properties("value", "time"))
		So(err, ShouldBeNil)
		So(server.NumRequests, ShouldEqual, 1)
		So(tbl.Empty(), ShouldBeTrue)
		So(tbl.Columns(), ShouldResemble, []string{"value", "time"})
	})

	Convey("a first page failure is fatal", t, func() {
		reset([]string{"not found"}, []int{404})

		_, _, err := Get(ctx, daily)
		So(err, ShouldNotBeNil)
		So(server.NumRequests, ShouldEqual, 1)
	})

	Convey("rate limiting suggests an API token", t, func() {
		reset([]string{"slow down"}, []int{429})

		_, _, err := Get(ctx, daily)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "API token")
	})

	Convey("a later page failure keeps the pages already retrieved", t, func() {
		reset([]string{
			pageJSON(next, feature("a", "2023-01-01", 1)),
			"boom",
		}, []int{200, 500})

		tbl, _, err := Get(ctx, daily)
		So(err, ShouldBeNil)
		So(server.NumRequests, ShouldEqual, 2)
		So(tbl.NumRows(), ShouldEqual, 1)
		So(tbl.Cell(0, "daily_id"), ShouldEqual, "a")
	})

	Convey("empty results take column names from the schema", t, func() {
		reset([]string{
			`{"numberReturned": 0, "features": [], "links": []}`,
			`{"properties": {"id": {}, "time": {}, "value": {}}}`,
		}, nil)

		tbl, _, err := Get(ctx, daily)
		So(err, ShouldBeNil)
		So(server.NumRequests, ShouldEqual, 2)
		So(server.RequestPath, ShouldEqual, "/ogcapi/v0/collections/daily/schema")
		So(tbl.Empty(), ShouldBeTrue)
		So(tbl.Columns(), ShouldResemble, []string{"time", "value", "daily_id"})
	})

	Convey("requested properties restrict and order the columns", t, func() {
		reset([]string{pageJSON("", feature("a", "2023-01-01", 1))}, nil)

		tbl, _, err := Get(ctx, daily.Properties("value", "daily_id"))
		So(err, ShouldBeNil)
		So(server.RequestQuery.Get("properties"), ShouldEqual, "value,id")
		So(tbl.Columns(), ShouldResemble, []string{"value", "daily_id"})
	})

	Convey("type conversion can be disabled", t, func() {
		reset([]string{pageJSON("", feature("a", "2023-01-01", 1))}, nil)

		tbl, _, err := Get(ctx, daily.ConvertTypes(false))
		So(err, ShouldBeNil)
		So(tbl.Cell(0, "time"), ShouldEqual, "2023-01-01")
	})

	Convey("GetReferenceTable", t, func() {
		Convey("rejects unknown collections without a request", func() {
			reset(nil, nil)
			_, _, err := GetReferenceTable(ctx, "zip-codes", 0)
			So(err, ShouldNotBeNil)
			So(server.NumRequests, ShouldEqual, 0)
		})

		Convey("renames the id column to the singular collection name", func() {
			reset([]string{`{"numberReturned": 1, "features": [` +
				`{"id": "AL", "geometry": null, "properties": {"name": "Alabama"}}` +
				`], "links": []}`}, nil)

			tbl, _, err := GetReferenceTable(ctx, "states", 100)
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/ogcapi/v0/collections/states/items")
			So(server.RequestQuery.Get("limit"), ShouldEqual, "100")
			So(tbl.Columns(), ShouldResemble, []string{"state", "name"})
			So(tbl.Cell(0, "state"), ShouldEqual, "AL")
		})

		Convey("counties get the irregular singular", func() {
			reset([]string{`{"numberReturned": 1, "features": [` +
				`{"id": "01001", "geometry": null, "properties": {}}], "links": []}`},
				nil)

			tbl, _, err := GetReferenceTable(ctx, "counties", 0)
			So(err, ShouldBeNil)
			So(tbl.Columns(), ShouldResemble, []string{"county"})
		})
	})
}
