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

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// TestServer is an HTTP server for tests. Each request consumes the next
// element of ResponseBody; the last element is repeated when the queue runs
// out. The Request* fields record the most recent request.
type TestServer struct {
	ResponseBody   []string
	ResponseStatus []int // parallel to ResponseBody; empty = all 200

	RequestPath   string
	RequestQuery  url.Values
	RequestMethod string
	RequestBody   string
	RequestHeader http.Header

	NumRequests int

	mu     sync.Mutex // guards the fields above during concurrent requests
	server *httptest.Server
}

// NewTestServer creates and starts a test server.
func NewTestServer() *TestServer {
	ts := &TestServer{}
	ts.server = httptest.NewServer(http.HandlerFunc(ts.handler))
	return ts
}

func (ts *TestServer) handler(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.RequestPath = r.URL.Path
	ts.RequestQuery = r.URL.Query()
	ts.RequestMethod = r.Method
	ts.RequestHeader = r.Header.Clone()
	body, _ := io.ReadAll(r.Body)
	ts.RequestBody = string(body)

	i := ts.NumRequests
	ts.NumRequests++
	clamp := func(i, n int) int {
		if i >= n {
			return n - 1
		}
		return i
	}
	status := http.StatusOK
	if len(ts.ResponseStatus) > 0 {
		status = ts.ResponseStatus[clamp(i, len(ts.ResponseStatus))]
	}
	resp := ""
	if len(ts.ResponseBody) > 0 {
		resp = ts.ResponseBody[clamp(i, len(ts.ResponseBody))]
	}
	w.WriteHeader(status)
	w.Write([]byte(resp))
}

// URL of the running server.
func (ts *TestServer) URL() string { return ts.server.URL }

// Client returns an HTTP client connected to the server, to be injected with
// UseClient.
func (ts *TestServer) Client() *http.Client { return ts.server.Client() }

// Close shuts the server down.
func (ts *TestServer) Close() { ts.server.Close() }
