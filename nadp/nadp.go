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

// Package nadp downloads gridded maps from the National Atmospheric
// Deposition Program: the National Trends Network (precipitation chemistry)
// and the Mercury Deposition Network. The maps are served as zipped GeoTIFF
// files; the download is extracted into a caller directory.
package nadp

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"golang.org/x/exp/slices"
)

// NADPURL is the base URL of the map file library. A variable so tests can
// point it at a local server.
var NADPURL = "https://nadp.slh.wisc.edu"

const mapExt = "filelib/maps"

// NTNConcParams are the constituents with concentration gradient maps.
var NTNConcParams = []string{
	"pH", "So4", "NO3", "NH4", "Ca", "Mg", "K", "Na", "Cl", "Br"}

// NTNDepParams are the constituents with deposition gradient maps.
var NTNDepParams = []string{
	"H", "So4", "NO3", "NH4", "Ca", "Mg", "K", "Na", "Cl", "Br", "N", "SPlusN"}

// NTNMeasTypes are the measurement types of the trends network. Note the
// upper case in "Precip"; the file library is case-sensitive.
var NTNMeasTypes = []string{"conc", "dep", "Precip"}

// MDNMeasTypes are the measurement types of the mercury network.
var MDNMeasTypes = []string{"conc", "dep"}

// downloadZip fetches a zip archive into memory. Map downloads are safe to
// retry, so transient failures are handled by the fetcher.
func downloadZip(ctx context.Context, url string) (*zip.Reader, error) {
	resp, err := fetch.GetRetry(ctx, url, nil, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to download %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read %s", url)
	}
	r := bytes.NewReader(data)
	z, err := zip.NewReader(r, r.Size())
	if err != nil {
		return nil, errors.Annotate(err, "failed to read zip archive from %s", url)
	}
	return z, nil
}

// extractMap writes the archive's files into dir and returns the path of the
// contained GeoTIFF. Entry names are flattened to their base name, so a
// crafted archive cannot write outside dir.
func extractMap(z *zip.Reader, dir string) (string, error) {
	tifPath := ""
	for _, f := range z.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := filepath.Base(f.Name)
		rc, err := f.Open()
		if err != nil {
			return "", errors.Annotate(err, "failed to open '%s' in archive", f.Name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", errors.Annotate(err, "failed to read '%s' in archive", f.Name)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", errors.Annotate(err, "failed to write %s", path)
		}
		if strings.HasSuffix(strings.ToLower(name), ".tif") {
			tifPath = path
		}
	}
	if tifPath == "" {
		return "", errors.Reason("archive contains no GeoTIFF file")
	}
	return tifPath, nil
}

func getMap(ctx context.Context, url, dir string) (string, error) {
	z, err := downloadZip(ctx, url)
	if err != nil {
		return "", err
	}
	return extractMap(z, dir)
}

// GetAnnualMDNMap downloads the annual mercury gradient map for a measurement
// type ("conc" or "dep") and a "YYYY" year, extracts it into dir, and returns
// the path of the GeoTIFF.
func GetAnnualMDNMap(ctx context.Context, measType, year, dir string) (string, error) {
	if !slices.Contains(MDNMeasTypes, measType) {
		return "", errors.Reason("invalid measurement type %q; allowed types: %s",
			measType, strings.Join(MDNMeasTypes, ", "))
	}
	url := NADPURL + "/" + mapExt + "/MDN/grids/Hg_" + measType + "_" + year + ".zip"
	path, err := getMap(ctx, url, dir)
	if err != nil {
		return "", errors.Annotate(err, "failed to get MDN %s map for %s",
			measType, year)
	}
	return path, nil
}

// GetAnnualNTNMap downloads an annual trends network gradient map, extracts
// it into dir, and returns the path of the GeoTIFF. measType is "conc", "dep"
// or "Precip"; measurement names the constituent (e.g. "NO3") and is empty
// for precipitation maps.
func GetAnnualNTNMap(ctx context.Context, measType, measurement, year, dir string) (string, error) {
	if !slices.Contains(NTNMeasTypes, measType) {
		return "", errors.Reason("invalid measurement type %q; allowed types: %s",
			measType, strings.Join(NTNMeasTypes, ", "))
	}
	filename := measType + "_" + year + ".zip"
	if measurement != "" {
		filename = measurement + "_" + filename
	}
	url := NADPURL + "/" + mapExt + "/NTN/grids/" + year + "/" + filename
	path, err := getMap(ctx, url, dir)
	if err != nil {
		return "", errors.Annotate(err, "failed to get NTN %s map for %s",
			measType, year)
	}
	return path, nil
}
