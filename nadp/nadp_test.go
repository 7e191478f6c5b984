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

package nadp

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stockparfait/fetch"

	"github.com/waterfetch/waterfetch/query"
)

// zipArchive builds an in-memory zip with the given name → contents entries.
func zipArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestMaps(t *testing.T) {
	// No t.Parallel: tests repoint the package-level file library URL.

	server := query.NewTestServer()
	defer server.Close()
	ctx := fetch.UseClient(context.Background(), server.Client())

	NADPURL = server.URL()

	Convey("GetAnnualMDNMap downloads and extracts the GeoTIFF", t, func() {
		dir := t.TempDir()
		server.ResponseBody = []string{zipArchive(t, map[string]string{
			"Hg_conc_2010.tif": "TIFF",
			"readme.txt":       "about",
		})}

		path, err := GetAnnualMDNMap(ctx, "conc", "2010", dir)
		So(err, ShouldBeNil)
		So(server.RequestPath, ShouldEqual,
			"/filelib/maps/MDN/grids/Hg_conc_2010.zip")
		So(path, ShouldEqual, filepath.Join(dir, "Hg_conc_2010.tif"))

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "TIFF")

		// The rest of the archive is extracted alongside.
		_, err = os.Stat(filepath.Join(dir, "readme.txt"))
		So(err, ShouldBeNil)
	})

	Convey("GetAnnualNTNMap prefixes the constituent", t, func() {
		dir := t.TempDir()
		server.ResponseBody = []string{zipArchive(t, map[string]string{
			"NO3_dep_2015.tif": "TIFF",
		})}

		path, err := GetAnnualNTNMap(ctx, "dep", "NO3", "2015", dir)
		So(err, ShouldBeNil)
		So(server.RequestPath, ShouldEqual,
			"/filelib/maps/NTN/grids/2015/NO3_dep_2015.zip")
		So(filepath.Base(path), ShouldEqual, "NO3_dep_2015.tif")
	})

	Convey("precipitation maps have no constituent prefix", t, func() {
		dir := t.TempDir()
		server.ResponseBody = []string{zipArchive(t, map[string]string{
			"Precip_2015.tif": "TIFF",
		})}

		_, err := GetAnnualNTNMap(ctx, "Precip", "", "2015", dir)
		So(err, ShouldBeNil)
		So(server.RequestPath, ShouldEqual,
			"/filelib/maps/NTN/grids/2015/Precip_2015.zip")
	})

	Convey("measurement types are validated locally", t, func() {
		server.RequestPath = ""
		_, err := GetAnnualMDNMap(ctx, "precip", "2010", t.TempDir())
		So(err, ShouldNotBeNil)
		_, err = GetAnnualNTNMap(ctx, "Conc", "", "2015", t.TempDir())
		So(err, ShouldNotBeNil)
		So(server.RequestPath, ShouldEqual, "")
	})

	Convey("an archive without a GeoTIFF is an error", t, func() {
		server.ResponseBody = []string{zipArchive(t, map[string]string{
			"readme.txt": "no grid here",
		})}

		_, err := GetAnnualMDNMap(ctx, "dep", "2011", t.TempDir())
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "no GeoTIFF")
	})
}
