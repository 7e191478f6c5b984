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

package codes

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCodes(t *testing.T) {
	t.Parallel()

	Convey("Location resolves fixed offsets", t, func() {
		loc, ok := Location("EST")
		So(ok, ShouldBeTrue)
		tm := time.Date(2023, 5, 1, 0, 0, 0, 0, loc)
		So(tm.UTC().Hour(), ShouldEqual, 5)

		loc, ok = Location(" edt ")
		So(ok, ShouldBeTrue)
		tm = time.Date(2023, 5, 1, 0, 0, 0, 0, loc)
		So(tm.UTC().Hour(), ShouldEqual, 4)

		loc, ok = Location("GST")
		So(ok, ShouldBeTrue)
		tm = time.Date(2023, 5, 1, 10, 0, 0, 0, loc)
		So(tm.UTC().Hour(), ShouldEqual, 0)

		_, ok = Location("XYZ")
		So(ok, ShouldBeFalse)
	})

	Convey("IsStateCode", t, func() {
		So(IsStateCode("va"), ShouldBeTrue)
		So(IsStateCode("VA"), ShouldBeTrue)
		So(IsStateCode("zz"), ShouldBeFalse)
	})
}
