/*
Copyright © 2024 the rex authors.
This file is part of rex.

rex is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

rex is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with rex.  If not, see <http://www.gnu.org/licenses/>.
*/

package rexutil

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/go-cloud/blob"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rex"
	"github.com/tealeg/xlsx"
	"golang.org/x/sync/errgroup"
)

// timeFormat is the format of time stamps in output tables.
const timeFormat = "2006-01-02 15:04:05-07:00"

// table is an output table. Each cell is a string or a float64.
type table struct {
	name   string // file name without extension
	header []string
	rows   [][]interface{}
}

// siteTable converts the SAM data for one site to a table with a time
// column followed by one column per variable, using SAM column names.
func siteTable(name string, t *rex.SiteTable) *table {
	o := &table{name: name, header: append([]string{"time_index"}, t.SAMColumns()...)}
	for i, tt := range t.Time {
		row := make([]interface{}, 0, len(o.header))
		row = append(row, tt.Format(timeFormat))
		for _, c := range t.Columns {
			row = append(row, t.Data[c][i])
		}
		o.rows = append(o.rows, row)
	}
	return o
}

// metaTable lists the meta data of sites, one row per site.
func metaTable(name string, sites []rex.Site) *table {
	var extra []string
	seen := make(map[string]bool)
	for _, s := range sites {
		for k := range s.Extra {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	o := &table{name: name, header: append([]string{"gid", "latitude", "longitude", "timezone", "elevation"}, extra...)}
	for _, s := range sites {
		row := []interface{}{float64(s.GID), s.Latitude, s.Longitude, float64(s.Timezone), s.Elevation}
		for _, k := range extra {
			row = append(row, s.Extra[k])
		}
		o.rows = append(o.rows, row)
	}
	return o
}

// datasetTable converts a [time × site] array to a table with a time
// column followed by one column per gid.
func datasetTable(name string, times []time.Time, gids []int, data *sparse.DenseArray) *table {
	o := &table{name: name, header: []string{"time_index"}}
	for _, g := range gids {
		o.header = append(o.header, strconv.Itoa(g))
	}
	ns := data.Shape[1]
	for t, tt := range times {
		row := make([]interface{}, 0, len(o.header))
		row = append(row, tt.Format(timeFormat))
		for c := 0; c < ns; c++ {
			row = append(row, data.Elements[t*ns+c])
		}
		o.rows = append(o.rows, row)
	}
	return o
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// writeCSV writes t to w as CSV with a header row.
func writeCSV(w io.Writer, t *table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	rec := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := cw.Write(rec[:len(row)]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeXLSX writes t to w as a workbook with a single sheet.
func writeXLSX(w io.Writer, t *table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	if err != nil {
		return err
	}
	row := sheet.AddRow()
	for _, h := range t.header {
		row.AddCell().SetString(h)
	}
	for _, r := range t.rows {
		row = sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			switch x := v.(type) {
			case float64:
				cell.SetFloat(x)
			default:
				cell.SetString(formatCell(x))
			}
		}
	}
	return f.Write(w)
}

// outputDir is a local directory or a blob storage location that
// output tables are written to.
type outputDir struct {
	path   string
	bucket *blob.Bucket
	prefix string
}

// openOutputDir opens dir, creating it if it is a local directory that
// does not exist yet.
func openOutputDir(ctx context.Context, dir string) (*outputDir, error) {
	dir = os.ExpandEnv(dir)
	if dir == "" {
		return nil, fmt.Errorf("rexutil: an output directory must be specified")
	}
	if IsBlob(dir) {
		u, err := url.Parse(dir)
		if err != nil {
			return nil, fmt.Errorf("rexutil: parsing output location %s: %v", dir, err)
		}
		b, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
		if err != nil {
			return nil, fmt.Errorf("rexutil: checking output location: %v", err)
		}
		return &outputDir{path: dir, bucket: b, prefix: strings.TrimPrefix(u.Path, "/")}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("rexutil: creating output directory: %v", err)
	}
	return &outputDir{path: dir}, nil
}

// create opens the file name in d for writing.
func (d *outputDir) create(ctx context.Context, name string) (io.WriteCloser, error) {
	if d.bucket != nil {
		return d.bucket.NewWriter(ctx, path.Join(d.prefix, name), &blob.WriterOptions{})
	}
	return os.Create(filepath.Join(d.path, name))
}

// location returns where the file name in d is written to.
func (d *outputDir) location(name string) string {
	if d.bucket != nil {
		return strings.TrimSuffix(d.path, "/") + "/" + name
	}
	return filepath.Join(d.path, name)
}

// writeTables writes each table to its own file in d, several at a time.
func writeTables(ctx context.Context, d *outputDir, format string, tables []*table, log logrus.FieldLogger) error {
	write := writeCSV
	if format == "xlsx" {
		write = writeXLSX
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, t := range tables {
		t := t
		g.Go(func() error {
			name := t.name + "." + format
			w, err := d.create(ctx, name)
			if err != nil {
				return fmt.Errorf("rexutil: creating %s: %v", d.location(name), err)
			}
			if err := write(w, t); err != nil {
				w.Close()
				return fmt.Errorf("rexutil: writing %s: %v", d.location(name), err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("rexutil: closing %s: %v", d.location(name), err)
			}
			log.WithField("file", d.location(name)).Info("rexutil: saved data")
			return nil
		})
	}
	return g.Wait()
}
