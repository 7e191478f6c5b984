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

// Command waterfetch retrieves hydrologic time series for a list of sites and
// prints them as text or CSV. Large site lists can be split into chunks
// retrieved in parallel.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/waterfetch/waterfetch/nwis"
	"github.com/waterfetch/waterfetch/stats"
	"github.com/waterfetch/waterfetch/table"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	Config   string // optional TOML config file
	Env      string // .env file with API_USGS_PAT; absence is not an error
	Service  string // dv, iv, stat, gwlevels, peaks, measurements
	Sites    string // comma-separated site numbers
	Start    string
	End      string
	Pcodes   string // comma-separated parameter codes
	Chunk    int    // sites per request; 0 = one request
	Rows     int    // print at most this many rows; 0 = all
	Summary  bool
	CSV      bool
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("waterfetch", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "TOML config file")
	fs.StringVar(&flags.Env, "env", ".env",
		"env file with the API_USGS_PAT access token")
	fs.StringVar(&flags.Service, "service", "dv",
		"service: dv, iv, stat, gwlevels, peaks or measurements")
	fs.StringVar(&flags.Sites, "sites", "", "comma-separated site numbers")
	fs.StringVar(&flags.Start, "start", "", "start date, YYYY-MM-DD")
	fs.StringVar(&flags.End, "end", "", "end date, YYYY-MM-DD")
	fs.StringVar(&flags.Pcodes, "pcodes", "",
		"comma-separated parameter codes, e.g. 00060")
	fs.IntVar(&flags.Chunk, "chunk", 0,
		"retrieve sites in parallel chunks of this size; 0 = single request")
	fs.IntVar(&flags.Rows, "rows", 0, "print at most this many rows; 0 = all")
	fs.BoolVar(&flags.Summary, "summary", false,
		"print summary statistics instead of the data")
	fs.BoolVar(&flags.CSV, "csv", false, "print CSV; default: text")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	return &flags, err
}

// Config mirrors the flags that make sense to keep in a file. Flags override
// the config values.
type Config struct {
	Service string   `toml:"service"`
	Sites   []string `toml:"sites"`
	Start   string   `toml:"start"`
	End     string   `toml:"end"`
	Pcodes  []string `toml:"pcodes"`
	Chunk   int      `toml:"chunk"`
}

func parseConfig(filePath string) (*Config, error) {
	var c Config
	if filePath == "" {
		return &c, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// merge applies flag overrides to the config.
func merge(c *Config, flags *Flags) *Config {
	res := *c
	if flags.Service != "" {
		res.Service = flags.Service
	}
	if sites := splitList(flags.Sites); len(sites) > 0 {
		res.Sites = sites
	}
	if flags.Start != "" {
		res.Start = flags.Start
	}
	if flags.End != "" {
		res.End = flags.End
	}
	if pcodes := splitList(flags.Pcodes); len(pcodes) > 0 {
		res.Pcodes = pcodes
	}
	if flags.Chunk != 0 {
		res.Chunk = flags.Chunk
	}
	return &res
}

// chunked splits the sites into runs of at most size sites, preserving order.
func chunked(sites []string, size int) [][]string {
	if size <= 0 || len(sites) <= size {
		return [][]string{sites}
	}
	var res [][]string
	for len(sites) > size {
		res = append(res, sites[:size])
		sites = sites[size:]
	}
	return append(res, sites)
}

func siteQuery(c *Config, sites []string) *nwis.Query {
	q := nwis.NewQuery().Sites(sites...)
	if c.Start != "" {
		q = q.Start(c.Start)
	}
	if c.End != "" {
		q = q.End(c.End)
	}
	if len(c.Pcodes) > 0 {
		q = q.ParameterCd(c.Pcodes...)
	}
	return q
}

func retrieve(ctx context.Context, c *Config) (*table.Table, error) {
	if len(c.Sites) == 0 {
		return nil, errors.Reason("no sites; use -sites or the config file")
	}
	chunks := chunked(c.Sites, c.Chunk)
	if len(chunks) == 1 {
		tbl, err := nwis.GetRecord(ctx, siteQuery(c, chunks[0]), c.Service)
		if err != nil {
			return nil, errors.Annotate(err, "failed to retrieve %q", c.Service)
		}
		return tbl, nil
	}

	f := func(sites []string) *table.Table {
		tbl, err := nwis.GetRecord(ctx, siteQuery(c, sites), c.Service)
		if err != nil {
			logging.Warningf(ctx, "failed to retrieve sites %s: %s",
				strings.Join(sites, ","), err.Error())
			return nil
		}
		return tbl
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(chunks), f)
	defer pm.Close()

	// The first chunk's table keeps its index, so the concatenated result can
	// be re-sorted as one series.
	tbl := iterator.Reduce[*table.Table, *table.Table](pm, nil,
		func(t, total *table.Table) *table.Table {
			if total == nil {
				return t
			}
			if t != nil {
				total.Concat(t)
			}
			return total
		})
	if tbl == nil {
		return nil, errors.Reason("all %d chunks failed", len(chunks))
	}
	tbl.SortByIndex()
	return tbl, nil
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	c := merge(config, flags)

	tbl, err := retrieve(ctx, c)
	if err != nil {
		return err
	}
	if flags.Summary {
		tbl = stats.Table(stats.SummarizeAll(tbl))
	}
	p := table.Params{Rows: flags.Rows}
	if flags.CSV {
		if err := tbl.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	// The token is optional; a missing env file simply means anonymous access.
	if err := godotenv.Load(flags.Env); err != nil && !os.IsNotExist(err) {
		logging.Warningf(ctx, "failed to load %s: %s", flags.Env, err.Error())
	}

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
