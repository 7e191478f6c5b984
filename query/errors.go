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

package query

import "fmt"

// BadRequestError reports a malformed query (HTTP 400). Not retried.
type BadRequestError struct {
	URL string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request, check the query parameters: %s", e.URL)
}

// NotFoundError reports HTTP 404. For these services it usually means the
// query matched nothing, not that the endpoint is wrong.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(
		"not found: %s; this often means the query matched no records", e.URL)
}

// QueryTooLongError reports HTTP 414, the usual failure mode of a very large
// site list.
type QueryTooLongError struct {
	URL    string
	Length int // length of the request URL in bytes
}

func (e *QueryTooLongError) Error() string {
	return fmt.Sprintf(
		"request URL of %d characters is too long: %s; "+
			"split the site list into smaller chunks and issue multiple requests",
		e.Length, e.URL)
}

// NoResultsError reports a 200 response whose body is the service's "no data"
// sentinel rather than a well-formed empty table.
type NoResultsError struct {
	URL string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no sites or data found for query: %s", e.URL)
}

// StatusError reports any other non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.URL)
}
