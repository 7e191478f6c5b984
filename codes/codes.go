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

// Package codes holds the fixed lookup tables shared by the service clients:
// time zone abbreviations as reported by the water services, and the two
// letter state codes accepted by the site filters.
package codes

import (
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// TZ maps the time zone abbreviations used in service output to fixed UTC
// offsets in "-07:00" form. These services report civil abbreviations, not
// IANA zones, so daylight variants are separate entries.
var TZ = map[string]string{
	"UTC":  "+00:00",
	"GMT":  "+00:00",
	"AST":  "-04:00", // Atlantic
	"ADT":  "-03:00",
	"EST":  "-05:00",
	"EDT":  "-04:00",
	"CST":  "-06:00",
	"CDT":  "-05:00",
	"MST":  "-07:00",
	"MDT":  "-06:00",
	"PST":  "-08:00",
	"PDT":  "-07:00",
	"AKST": "-09:00",
	"AKDT": "-08:00",
	"HST":  "-10:00",
	"HDT":  "-09:00",
	"SST":  "-11:00", // Samoa
	"GST":  "+10:00", // Guam
}

// Location returns a fixed time.Location for a zone abbreviation.
func Location(abbr string) (*time.Location, bool) {
	off, ok := TZ[strings.ToUpper(strings.TrimSpace(abbr))]
	if !ok {
		return nil, false
	}
	sign := 1
	if off[0] == '-' {
		sign = -1
	}
	h := int(off[1]-'0')*10 + int(off[2]-'0')
	m := int(off[4]-'0')*10 + int(off[5]-'0')
	return time.FixedZone(strings.ToUpper(abbr), sign*(h*3600+m*60)), true
}

// StateCodes lists the two letter codes accepted by the stateCd site filter.
var StateCodes = []string{
	"al", "ak", "az", "ar", "ca", "co", "ct", "de", "dc", "fl",
	"ga", "hi", "id", "il", "in", "ia", "ks", "ky", "la", "me",
	"md", "ma", "mi", "mn", "ms", "mo", "mt", "ne", "nv", "nh",
	"nj", "nm", "ny", "nc", "nd", "oh", "ok", "or", "pa", "ri",
	"sc", "sd", "tn", "tx", "ut", "vt", "va", "wa", "wv", "wi",
	"wy",
}

// IsStateCode checks a (case insensitive) two letter state code.
func IsStateCode(code string) bool {
	return slices.Contains(StateCodes, strings.ToLower(code))
}
